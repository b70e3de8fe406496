package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// poolStatus is the pool snapshot included in readiness responses.
type poolStatus struct {
	TotalConns int32 `json:"total_conns"`
	IdleConns  int32 `json:"idle_conns"`
	InUseConns int32 `json:"in_use_conns"`
	MaxConns   int32 `json:"max_conns"`
}

type readiness struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Pool   poolStatus `json:"pool"`
}

// HealthHandler answers readiness checks by pinging the database. A failed
// ping returns 503 so the load balancer stops routing to this instance.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		stat := pool.Stat()
		body := readiness{
			Status: "ready",
			Pool: poolStatus{
				TotalConns: stat.TotalConns(),
				IdleConns:  stat.IdleConns(),
				InUseConns: stat.AcquiredConns(),
				MaxConns:   stat.MaxConns(),
			},
		}

		if err := pool.Ping(ctx); err != nil {
			body.Status = "unavailable"
			body.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}

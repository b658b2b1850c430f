package execution

import (
	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// WorkingOrder is the single simulated resting order. At most one
// non-terminal instance exists per engine, owned exclusively by it.
type WorkingOrder struct {
	ID            string               `json:"id"`
	PlacedAt      int64                `json:"placedAt"`
	Side          types.Side           `json:"side"`
	Price         decimal.Decimal      `json:"price"`
	Quantity      decimal.Decimal      `json:"quantity"`
	TimeInForceMs int64                `json:"timeInForceMs"`
	Mode          types.Aggressiveness `json:"mode"`
	Budget        float64              `json:"budget"`
	Status        types.OrderStatus    `json:"status"`
}

// Age returns the order age in ms at the given time.
func (o *WorkingOrder) Age(now int64) int64 {
	return now - o.PlacedAt
}

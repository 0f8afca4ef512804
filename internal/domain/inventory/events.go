package inventory

import "time"

const (
	EventStockReserved  = "StockReserved"
	EventStockReleased  = "StockReleased"
	EventStockCommitted = "StockCommitted"
	EventStockRestored  = "StockRestored"
	EventStockAdjusted  = "StockAdjusted"
)

type StockReserved struct {
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	ReservedAt  time.Time `json:"reserved_at"`
}

type StockReleased struct {
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	ReleasedAt  time.Time `json:"released_at"`
}

type StockCommitted struct {
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	CommittedAt time.Time `json:"committed_at"`
}

type StockRestored struct {
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	RestoredAt  time.Time `json:"restored_at"`
}

type StockAdjusted struct {
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Delta       int       `json:"delta"`
	Reason      string    `json:"reason"`
	AdjustedAt  time.Time `json:"adjusted_at"`
}

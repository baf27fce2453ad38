package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OrderDateLayout is the ISO-8601 layout used for order_date. Fixed width and UTC,
// so lexical order matches chronological order.
const OrderDateLayout = "2006-01-02T15:04:05.000Z"

// FormatOrderDate renders a timestamp for the order_date column
func FormatOrderDate(t time.Time) string {
	return t.UTC().Format(OrderDateLayout)
}

// ParseOrderDate parses an order_date value
func ParseOrderDate(s string) (time.Time, error) {
	t, err := time.Parse(OrderDateLayout, s)
	if err != nil {
		// Older rows may carry full RFC3339 timestamps
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid order date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// OrderDetails is the full order embedded in a remote record for detail display
type OrderDetails struct {
	Order
}

// Value implements driver.Valuer so the payload is stored as JSON text
func (d OrderDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(d.Order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order details: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (d *OrderDetails) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported order details type %T", value)
	}
	return json.Unmarshal(data, &d.Order)
}

// MarshalJSON keeps the API representation identical to the embedded order
func (d OrderDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Order)
}

// UnmarshalJSON reads the embedded order
func (d *OrderDetails) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Order)
}

// OrderRecord is the flattened projection of an Order stored in the remote orders table
type OrderRecord struct {
	ID               string       `gorm:"primaryKey;type:text" json:"id"`
	CustomerName     string       `gorm:"not null" json:"customer_name"`
	CustomerPhone    string       `gorm:"not null" json:"customer_phone"`
	CustomerLocation string       `gorm:"not null" json:"customer_location"`
	PhotoCount       int          `gorm:"not null" json:"photo_count"`
	IsExpress        bool         `gorm:"not null;default:false" json:"is_express"`
	DeliveryPrice    int          `gorm:"not null;default:0" json:"delivery_price"`
	TotalCost        int          `gorm:"not null" json:"total_cost"`
	OrderDate        string       `gorm:"not null;index" json:"order_date"`
	OrderDetails     OrderDetails `gorm:"type:jsonb;not null" json:"order_details"`
}

// TableName specifies the table name for the OrderRecord model
func (OrderRecord) TableName() string {
	return "orders"
}

// NewOrderRecord projects an Order onto the remote table layout
func NewOrderRecord(o Order) OrderRecord {
	return OrderRecord{
		ID:               o.ID,
		CustomerName:     o.Customer.Name,
		CustomerPhone:    o.Customer.Phone,
		CustomerLocation: o.Customer.Location,
		PhotoCount:       o.PhotoCount(),
		IsExpress:        o.Delivery.IsExpress(),
		DeliveryPrice:    o.Delivery.Fee(),
		TotalCost:        o.TotalCost,
		OrderDate:        FormatOrderDate(o.CreatedAt),
		OrderDetails:     OrderDetails{Order: o.Clone()},
	}
}

// ToOrder rebuilds the canonical Order from a remote record.
// The flattened columns are authoritative; the payload supplies the photos.
func (r OrderRecord) ToOrder() (Order, error) {
	delivery := StandardDelivery()
	if r.IsExpress {
		delivery = ExpressDelivery()
	}

	o := Order{
		ID:     r.ID,
		Photos: append([]PhotoRef(nil), r.OrderDetails.Photos...),
		Customer: CustomerInfo{
			Name:     r.CustomerName,
			Phone:    r.CustomerPhone,
			Location: r.CustomerLocation,
		},
		Delivery:  delivery,
		TotalCost: r.TotalCost,
	}

	createdAt, err := ParseOrderDate(r.OrderDate)
	if err != nil {
		return o, err
	}
	o.CreatedAt = createdAt

	if len(o.Photos) != r.PhotoCount {
		return o, fmt.Errorf("order %s payload has %d photos but photo_count is %d", r.ID, len(o.Photos), r.PhotoCount)
	}

	return o, nil
}

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// PhotoUnitPrice is the price of a single printed photo
	PhotoUnitPrice = 60
	// ExpressDeliveryFee is the flat fee charged for express delivery
	ExpressDeliveryFee = 30

	// OrderIDPrefix is prepended to every generated order identifier
	OrderIDPrefix = "ORD-"

	// TransientPreviewPrefix marks a preview reference that only lives as long as the process
	TransientPreviewPrefix = "blob:"
)

// DeliveryTier is the tag of a DeliveryOption
type DeliveryTier string

const (
	DeliveryStandard DeliveryTier = "standard" // free, next day
	DeliveryExpress  DeliveryTier = "express"  // flat fee, fast window
)

// DeliveryOption is the delivery choice for an order.
// The fee is fully determined by the tier and cannot be set independently.
type DeliveryOption struct {
	Tier DeliveryTier
}

// StandardDelivery returns the free next-day option
func StandardDelivery() DeliveryOption {
	return DeliveryOption{Tier: DeliveryStandard}
}

// ExpressDelivery returns the paid fast option
func ExpressDelivery() DeliveryOption {
	return DeliveryOption{Tier: DeliveryExpress}
}

// ParseDeliveryOption converts a request value ("standard", "express", "true", "false") to a DeliveryOption
func ParseDeliveryOption(s string) (DeliveryOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "false":
		return StandardDelivery(), nil
	case "express", "true":
		return ExpressDelivery(), nil
	default:
		return DeliveryOption{}, fmt.Errorf("unknown delivery option %q", s)
	}
}

// IsExpress reports whether this is the express tier
func (d DeliveryOption) IsExpress() bool {
	return d.Tier == DeliveryExpress
}

// Fee returns the delivery fee for the tier
func (d DeliveryOption) Fee() int {
	if d.IsExpress() {
		return ExpressDeliveryFee
	}
	return 0
}

// Window is a human readable delivery window
func (d DeliveryOption) Window() string {
	if d.IsExpress() {
		return "Express (10 minutes)"
	}
	return "Standard (Next Day)"
}

type deliveryOptionJSON struct {
	Tier      DeliveryTier `json:"tier,omitempty"`
	IsExpress bool         `json:"isExpress"`
	Price     int          `json:"price"`
}

// MarshalJSON writes the tag together with its derived fields
func (d DeliveryOption) MarshalJSON() ([]byte, error) {
	tier := d.Tier
	if tier == "" {
		tier = DeliveryStandard
	}
	return json.Marshal(deliveryOptionJSON{
		Tier:      tier,
		IsExpress: d.IsExpress(),
		Price:     d.Fee(),
	})
}

// UnmarshalJSON reads only the tag; the price is always recomputed
func (d *DeliveryOption) UnmarshalJSON(data []byte) error {
	var raw deliveryOptionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Tier == DeliveryExpress, raw.Tier == "" && raw.IsExpress:
		d.Tier = DeliveryExpress
	case raw.Tier == DeliveryStandard, raw.Tier == "":
		d.Tier = DeliveryStandard
	default:
		return fmt.Errorf("unknown delivery tier %q", raw.Tier)
	}
	return nil
}

// CustomerInfo holds the delivery contact details
type CustomerInfo struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// MissingFields returns the JSON names of the required fields that are blank
func (c CustomerInfo) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(c.Location) == "" {
		missing = append(missing, "location")
	}
	return missing
}

// Photo is a photo selected by the customer. Content never leaves the process.
type Photo struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Content     []byte `json:"-"`
	Preview     string `json:"preview"`
}

// HasTransientPreview reports whether the preview must be encoded before persistence
func (p Photo) HasTransientPreview() bool {
	return p.Preview == "" || strings.HasPrefix(p.Preview, TransientPreviewPrefix)
}

// PhotoRef is the durable reference to a photo carried by an Order
type PhotoRef struct {
	ID       string `json:"id"`
	FileName string `json:"fileName,omitempty"`
	Preview  string `json:"preview"`
}

// Order is an immutable customer order
type Order struct {
	ID        string         `json:"orderId"`
	Photos    []PhotoRef     `json:"photos"`
	Customer  CustomerInfo   `json:"userInfo"`
	Delivery  DeliveryOption `json:"deliveryOption"`
	TotalCost int            `json:"totalCost"`
	CreatedAt time.Time      `json:"orderDate"`
}

// PhotoCount returns the number of photos in the order
func (o Order) PhotoCount() int {
	return len(o.Photos)
}

// PhotoCost returns the cost of the prints without delivery
func (o Order) PhotoCost() int {
	return o.PhotoCount() * PhotoUnitPrice
}

// ExpectedTotal recomputes the total from the order's own fields
func (o Order) ExpectedTotal() int {
	return o.PhotoCost() + o.Delivery.Fee()
}

// Verify checks the order invariants
func (o Order) Verify() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("order has no identifier")
	}
	if o.TotalCost != o.ExpectedTotal() {
		return fmt.Errorf("order %s total %d does not match recomputed total %d", o.ID, o.TotalCost, o.ExpectedTotal())
	}
	return nil
}

// SameContent compares two orders ignoring photo previews, which may legitimately
// be re-encoded between stores. Timestamps compare at the stored millisecond precision.
func (o Order) SameContent(other Order) bool {
	if o.ID != other.ID ||
		o.Customer != other.Customer ||
		o.Delivery.IsExpress() != other.Delivery.IsExpress() ||
		o.TotalCost != other.TotalCost ||
		FormatOrderDate(o.CreatedAt) != FormatOrderDate(other.CreatedAt) ||
		len(o.Photos) != len(other.Photos) {
		return false
	}
	for i := range o.Photos {
		if o.Photos[i].ID != other.Photos[i].ID {
			return false
		}
	}
	return true
}

// Fingerprint hashes the fields compared by SameContent
func (o Order) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%t\x00%d\x00%s",
		o.ID, o.Customer.Name, o.Customer.Phone, o.Customer.Location,
		o.Delivery.IsExpress(), o.TotalCost, FormatOrderDate(o.CreatedAt))
	for _, p := range o.Photos {
		fmt.Fprintf(h, "\x00%s", p.ID)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Clone returns a deep copy so callers cannot mutate a shared order
func (o Order) Clone() Order {
	c := o
	c.Photos = append([]PhotoRef(nil), o.Photos...)
	return c
}

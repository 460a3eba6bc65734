package ecommerce

import (
	"encoding/json"
	"strings"
)

// SallaListResponse is the envelope of every Salla listing endpoint
type SallaListResponse[T any] struct {
	Status     int             `json:"status"`
	Success    bool            `json:"success"`
	Data       []T             `json:"data"`
	Pagination SallaPagination `json:"pagination"`
}

// SallaItemResponse is the envelope of Salla detail endpoints
type SallaItemResponse[T any] struct {
	Status  int  `json:"status"`
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// SallaPagination reports page counts
type SallaPagination struct {
	Count       int `json:"count"`
	Total       int `json:"total"`
	PerPage     int `json:"perPage"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// SallaMoney is an amount with its currency
type SallaMoney struct {
	Amount   flexDecimal `json:"amount"`
	Currency string      `json:"currency"`
}

// UnmarshalJSON also accepts a bare amount, as sent by older webhook payloads
func (m *SallaMoney) UnmarshalJSON(data []byte) error {
	*m = SallaMoney{}
	if isNull(data) {
		return nil
	}
	if data[0] != '{' {
		return m.Amount.UnmarshalJSON(data)
	}
	type alias SallaMoney
	return json.Unmarshal(data, (*alias)(m))
}

// SallaImage is one product media entry
type SallaImage struct {
	ID   flexString `json:"id"`
	URL  string     `json:"url"`
	Main bool       `json:"main"`
}

// SallaSKU is one product variant
type SallaSKU struct {
	ID            flexString `json:"id"`
	StockQuantity flexInt    `json:"stock_quantity"`
}

// SallaCategoryRef is a category reference embedded in a product
type SallaCategoryRef struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

// SallaProductURLs holds product links
type SallaProductURLs struct {
	Customer string `json:"customer"`
	Admin    string `json:"admin"`
}

// SallaProduct represents a Salla product
type SallaProduct struct {
	ID          flexString         `json:"id"`
	SKU         string             `json:"sku"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Price       *SallaMoney        `json:"price"`
	Quantity    flexInt            `json:"quantity"`
	Unlimited   flexBool           `json:"unlimited_quantity"`
	Status      string             `json:"status"` // sale, out, hidden, deleted
	MainImage   string             `json:"main_image"`
	Thumbnail   string             `json:"thumbnail"`
	Images      []SallaImage       `json:"images"`
	SKUs        []SallaSKU         `json:"skus"`
	Categories  []SallaCategoryRef `json:"categories"`
	URLs        SallaProductURLs   `json:"urls"`
}

// IsListed reports whether the Salla status means the product is on sale
func (p *SallaProduct) IsListed() bool {
	switch strings.ToLower(strings.TrimSpace(p.Status)) {
	case "sale", "out":
		return true
	}
	return false
}

// SallaCategory represents a Salla category node
type SallaCategory struct {
	ID            flexString      `json:"id"`
	Name          string          `json:"name"`
	Status        string          `json:"status"`
	SubCategories []SallaCategory `json:"sub_categories"`
}

// SallaOrderStatus accepts either a status slug or a status object
type SallaOrderStatus struct {
	Slug string
	Name string
}

// UnmarshalJSON implements json.Unmarshaler
func (s *SallaOrderStatus) UnmarshalJSON(data []byte) error {
	*s = SallaOrderStatus{}
	if isNull(data) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &s.Slug)
	}
	var obj struct {
		Slug       string `json:"slug"`
		Name       string `json:"name"`
		Customized struct {
			Slug string `json:"slug"`
		} `json:"customized"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	// The base slug is the platform vocabulary; customized slugs are merchant defined
	s.Slug = obj.Slug
	if s.Slug == "" {
		s.Slug = obj.Customized.Slug
	}
	s.Name = obj.Name
	return nil
}

// SallaDate is Salla's timestamp object
type SallaDate struct {
	Date     string `json:"date"`
	Timezone string `json:"timezone"`
}

// UnmarshalJSON accepts the object form or a bare timestamp string
func (d *SallaDate) UnmarshalJSON(data []byte) error {
	*d = SallaDate{}
	if isNull(data) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &d.Date)
	}
	type alias SallaDate
	return json.Unmarshal(data, (*alias)(d))
}

// SallaCustomer holds buyer details
type SallaCustomer struct {
	ID         flexString `json:"id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Email      string     `json:"email"`
	Mobile     flexString `json:"mobile"`
	MobileCode string     `json:"mobile_code"`
}

// FullName joins the first and last names
func (c *SallaCustomer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Phone returns the mobile number with its country code
func (c *SallaCustomer) Phone() string {
	mobile := strings.TrimSpace(c.Mobile.String())
	if mobile == "" || c.MobileCode == "" || strings.HasPrefix(mobile, "+") {
		return mobile
	}
	return c.MobileCode + mobile
}

// SallaOrderItem is one order line
type SallaOrderItem struct {
	ID       flexString `json:"id"`
	Name     string     `json:"name"`
	SKU      string     `json:"sku"`
	Quantity flexInt    `json:"quantity"`
	Product  struct {
		ID flexString `json:"id"`
	} `json:"product"`
	Amounts struct {
		PriceWithoutTax SallaMoney `json:"price_without_tax"`
	} `json:"amounts"`
}

// SallaOrder represents a Salla order summary or detail
type SallaOrder struct {
	ID          flexString  `json:"id"`
	ReferenceID flexString  `json:"reference_id"`
	Total       *SallaMoney `json:"total"`
	Amounts     struct {
		Total *SallaMoney `json:"total"`
	} `json:"amounts"`
	Status        SallaOrderStatus `json:"status"`
	PaymentStatus string           `json:"payment_status"`
	Date          SallaDate        `json:"date"`
	Customer      SallaCustomer    `json:"customer"`
	Items         []SallaOrderItem `json:"items"`
	ReferralCode  string           `json:"referral_code"`
}

// total prefers the detail amounts block over the listing total
func (o *SallaOrder) total() *SallaMoney {
	if o.Amounts.Total != nil {
		return o.Amounts.Total
	}
	return o.Total
}

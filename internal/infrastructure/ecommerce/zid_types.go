package ecommerce

import "encoding/json"

// ZidProductListResponse is the envelope of the Zid product listing.
// Next is an absolute link to the following page, null on the last page.
type ZidProductListResponse struct {
	Count    int          `json:"count"`
	Next     *string      `json:"next"`
	Previous *string      `json:"previous"`
	Results  []ZidProduct `json:"results"`
}

// ZidImageSet holds the renditions of one product image
type ZidImageSet struct {
	FullSize  string `json:"full_size"`
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Small     string `json:"small"`
	Thumbnail string `json:"thumbnail"`
}

// ZidImage is one product media entry
type ZidImage struct {
	ID    flexString  `json:"id"`
	Image ZidImageSet `json:"image"`
}

// URL returns the largest rendition available
func (i *ZidImage) URL() string {
	return firstNonEmpty(i.Image.FullSize, i.Image.Large, i.Image.Medium, i.Image.Small)
}

// ZidVariant is one product variant
type ZidVariant struct {
	ID       flexString `json:"id"`
	Quantity flexInt    `json:"quantity"`
}

// ZidCategoryRef is a category reference embedded in a product
type ZidCategoryRef struct {
	ID   flexString    `json:"id"`
	Name localizedText `json:"name"`
}

// ZidProduct represents a Zid product
type ZidProduct struct {
	ID          flexString       `json:"id"`
	SKU         string           `json:"sku"`
	Name        localizedText    `json:"name"`
	Description localizedText    `json:"description"`
	Price       flexDecimal      `json:"price"`
	SalePrice   flexDecimal      `json:"sale_price"`
	Currency    string           `json:"currency"`
	Quantity    flexInt          `json:"quantity"`
	IsInfinite  flexBool         `json:"is_infinite"`
	IsPublished flexBool         `json:"is_published"`
	MainImage   string           `json:"main_image"`
	Images      []ZidImage       `json:"images"`
	Variants    []ZidVariant     `json:"variants"`
	Categories  []ZidCategoryRef `json:"categories"`
	HTMLURL     string           `json:"html_url"`
}

// ZidCategoryListResponse is the envelope of the Zid category listing
type ZidCategoryListResponse struct {
	Categories []ZidCategory `json:"categories"`
}

// ZidCategory represents a Zid category node
type ZidCategory struct {
	ID            flexString    `json:"id"`
	Name          localizedText `json:"name"`
	SubCategories []ZidCategory `json:"sub_categories"`
}

// ZidOrderListResponse is the envelope of the Zid order listing
type ZidOrderListResponse struct {
	Orders          []ZidOrder `json:"orders"`
	TotalOrderCount int        `json:"total_order_count"`
	Page            int        `json:"page"`
}

// ZidOrderResponse is the envelope of the Zid order detail
type ZidOrderResponse struct {
	Order ZidOrder `json:"order"`
}

// ZidOrderStatus accepts either a status code or a status object
type ZidOrderStatus struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// UnmarshalJSON implements json.Unmarshaler
func (s *ZidOrderStatus) UnmarshalJSON(data []byte) error {
	*s = ZidOrderStatus{}
	if isNull(data) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &s.Code)
	}
	type alias ZidOrderStatus
	return json.Unmarshal(data, (*alias)(s))
}

// ZidCustomer holds buyer details
type ZidCustomer struct {
	ID     flexString `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Mobile flexString `json:"mobile"`
}

// ZidOrderProduct is one order line
type ZidOrderProduct struct {
	ID       flexString    `json:"id"`
	SKU      string        `json:"sku"`
	Name     localizedText `json:"name"`
	Quantity flexInt       `json:"quantity"`
	Price    flexDecimal   `json:"price"`
}

// ZidOrder represents a Zid order summary or detail
type ZidOrder struct {
	ID            flexString        `json:"id"`
	Code          string            `json:"code"`
	OrderTotal    flexDecimal       `json:"order_total"`
	CurrencyCode  string            `json:"currency_code"`
	OrderStatus   ZidOrderStatus    `json:"order_status"`
	PaymentStatus string            `json:"payment_status"`
	CreatedAt     string            `json:"created_at"`
	Customer      ZidCustomer       `json:"customer"`
	Products      []ZidOrderProduct `json:"products"`
	ReferralCode  string            `json:"referral_code"`
}

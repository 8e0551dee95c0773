package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination mirrors the upstream page envelope.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is a generic `{results, pagination}` listing.
type Page[T any] struct {
	Results    []T        `json:"results"`
	Pagination Pagination `json:"pagination"`
}

// EmptyPage is what listings fall back to when the upstream body is unusable.
func EmptyPage[T any](page, pageSize int) Page[T] {
	return Page[T]{
		Results:    []T{},
		Pagination: Pagination{Page: page, PageSize: pageSize},
	}
}

type Product struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      *string          `json:"description,omitempty"`
	ImageURL         *string          `json:"image_url,omitempty"`
	Unit             string           `json:"unit"`
	Price            decimal.Decimal  `json:"price"`
	Discount         *decimal.Decimal `json:"discount,omitempty"`
	StockLevel       int              `json:"stock_level"`
	MinOrderQuantity int              `json:"min_order_quantity"`
	SupplierID       string           `json:"supplier_id"`
	Category         *string          `json:"category,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        *time.Time       `json:"updated_at,omitempty"`
}

// ProductInput is the create/update payload for catalog items.
type ProductInput struct {
	Name             string           `json:"name"`
	Description      *string          `json:"description,omitempty"`
	ImageURL         *string          `json:"image_url,omitempty"`
	Unit             string           `json:"unit"`
	Price            decimal.Decimal  `json:"price"`
	Discount         *decimal.Decimal `json:"discount,omitempty"`
	StockLevel       int              `json:"stock_level"`
	MinOrderQuantity int              `json:"min_order_quantity"`
	Category         *string          `json:"category,omitempty"`
}

type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID           string          `json:"id"`
	ConsumerID   string          `json:"consumer_id"`
	ConsumerName *string         `json:"consumer_name,omitempty"`
	SupplierID   string          `json:"supplier_id"`
	Status       string          `json:"status"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	ShippingFee  decimal.Decimal `json:"shipping_fee"`
	Total        decimal.Decimal `json:"total"`
	DeliveryDate *time.Time      `json:"delivery_date,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	Items        []OrderItem     `json:"items,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty"`
}

type ConsumerLink struct {
	ID          string     `json:"id"`
	ConsumerID  string     `json:"consumer_id"`
	SupplierID  string     `json:"supplier_id"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	BlockedAt   *time.Time `json:"blocked_at,omitempty"`
}

type Complaint struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	ConsumerID     string     `json:"consumer_id"`
	SupplierID     string     `json:"supplier_id"`
	OrderID        *string    `json:"order_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	EscalatedBy    *string    `json:"escalated_by,omitempty"`
	EscalatedAt    *time.Time `json:"escalated_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	Resolution     *string    `json:"resolution,omitempty"`
	Consumer       *Consumer  `json:"consumer,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TeamMember is a supplier staff account as listed on the owner's team page.
type TeamMember struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   *string   `json:"first_name,omitempty"`
	LastName    *string   `json:"last_name,omitempty"`
	CompanyName *string   `json:"company_name,omitempty"`
	Role        string    `json:"role"`
	SupplierID  *string   `json:"supplier_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTeamMember is the owner's create-user payload.
type NewTeamMember struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Role       string  `json:"role"`
	SupplierID *string `json:"supplier_id,omitempty"`
}

// DashboardStats is the landing-page summary for every role.
type DashboardStats struct {
	TotalOrders         int       `json:"total_orders"`
	PendingOrders       int       `json:"pending_orders"`
	PendingLinkRequests int       `json:"pending_link_requests"`
	LowStockItems       int       `json:"low_stock_items"`
	RecentOrders        []Order   `json:"recent_orders"`
	LowStockProducts    []Product `json:"low_stock_products"`
}

// SupplierProfile is the supplier the signed-in staff member works for.
type SupplierProfile struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       *string `json:"description,omitempty"`
	Email             string  `json:"email"`
	PhoneNumber       *string `json:"phone_number,omitempty"`
	Address           *string `json:"address,omitempty"`
	LegalEntity       *string `json:"legal_entity,omitempty"`
	Headquarters      *string `json:"headquarters,omitempty"`
	RegisteredAddress *string `json:"registered_address,omitempty"`
	BankingCurrency   *string `json:"banking_currency,omitempty"`
}

// Consumer is the buyer side of a link, order or complaint.
type Consumer struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// Message is one entry of a complaint conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderRole     string    `json:"sender_role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

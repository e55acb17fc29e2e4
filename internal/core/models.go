package core

import "time"

type PrinterType string

const (
	PrinterTypeKitchen PrinterType = "kitchen"
	PrinterTypeReceipt PrinterType = "receipt"
	PrinterTypeLabel   PrinterType = "label"
)

func (t PrinterType) Valid() bool {
	return t == PrinterTypeKitchen || t == PrinterTypeReceipt || t == PrinterTypeLabel
}

type ConnectionType string

const (
	ConnectionNetwork   ConnectionType = "network"
	ConnectionUSB       ConnectionType = "usb"
	ConnectionBluetooth ConnectionType = "bluetooth"
)

func (t ConnectionType) Valid() bool {
	return t == ConnectionNetwork || t == ConnectionUSB || t == ConnectionBluetooth
}

type PrinterState string

const (
	PrinterOnline  PrinterState = "online"
	PrinterOffline PrinterState = "offline"
	PrinterError   PrinterState = "error"
	PrinterUnknown PrinterState = "unknown"
)

type PrintType string

const (
	PrintKitchenTicket PrintType = "kitchen_ticket"
	PrintReceipt       PrintType = "receipt"
	PrintLabel         PrintType = "label"
)

func (t PrintType) Valid() bool {
	return t == PrintKitchenTicket || t == PrintReceipt || t == PrintLabel
}

// PrintTypeFor maps a printer's role to the document it receives.
func PrintTypeFor(t PrinterType) PrintType {
	switch t {
	case PrinterTypeReceipt:
		return PrintReceipt
	case PrinterTypeLabel:
		return PrintLabel
	default:
		return PrintKitchenTicket
	}
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobPrinting  JobStatus = "printing"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

type OrderItem struct {
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Quantity      int      `json:"quantity"`
	Modifications []string `json:"modifications,omitempty"`
}

// GuestInfo identifies the orderer on orders placed without an account.
type GuestInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type Order struct {
	ID                 string      `json:"id"`
	RestaurantID       string      `json:"restaurant_id"`
	CustomerID         string      `json:"customer_id,omitempty"`
	Guest              *GuestInfo  `json:"guest_info,omitempty"`
	Items              []OrderItem `json:"items"`
	TotalPrice         float64     `json:"total_price"`
	Status             Status      `json:"status"`
	Notes              string      `json:"notes,omitempty"`
	EstimatedReadyTime *time.Time  `json:"estimated_ready_time,omitempty"`
	CancellationReason string      `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type Printer struct {
	ID              string         `json:"id"`
	RestaurantID    string         `json:"restaurant_id"`
	Name            string         `json:"name"`
	Type            PrinterType    `json:"type"`
	ConnectionType  ConnectionType `json:"connection_type"`
	IPAddress       string         `json:"ip_address,omitempty"`
	Port            int            `json:"port,omitempty"`
	USBDevice       string         `json:"usb_device,omitempty"`
	AutoPrintOrders bool           `json:"auto_print_orders"`
	Enabled         bool           `json:"enabled"`
	Status          PrinterState   `json:"status"`
	LastSeenAt      *time.Time     `json:"last_seen_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type PrintJob struct {
	ID           string     `json:"id"`
	OrderID      string     `json:"order_id"`
	PrinterID    string     `json:"printer_id"`
	RestaurantID string     `json:"restaurant_id"`
	PrintType    PrintType  `json:"print_type"`
	Status       JobStatus  `json:"status"`
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"max_attempts"`
	ErrorMessage string     `json:"error,omitempty"`
	NotBefore    *time.Time `json:"not_before,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
}

// Principal is the authenticated caller as supplied by the auth middleware.
// Guests are not authenticated; handlers build a guest principal from the
// contact info in the request body.
type Principal struct {
	UserID       string
	Role         string
	RestaurantID string
	GuestEmail   string
	GuestPhone   string
}

const (
	RoleOwner    = "owner"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
	RoleGuest    = "guest"
)

// StatusChange is emitted after every successful order transition.
type StatusChange struct {
	OrderID      string
	RestaurantID string
	OldStatus    Status
	NewStatus    Status
}

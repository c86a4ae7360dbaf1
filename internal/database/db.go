package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type StringArray []string

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan StringArray: %v", value)
	}

	return json.Unmarshal(bytes, a)
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

func NewConnection(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		log.Fatal("DSN is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

// Order lifecycle states. Drafts are resumable, pending orders await
// payment confirmation, paid orders are final.
const (
	OrderStatusDraft   = "DRAFT"
	OrderStatusPending = "PENDING"
	OrderStatusPaid    = "PAID"
)

// Cashier is a terminal operator account. Passwords are bcrypt hashes.
type Cashier struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	Name      string `gorm:"not null"`
	IsActive  bool   `gorm:"default:true"`
	LastLogin *time.Time
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

type Customer struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Email     string
	Phone     string
	IsGuest   bool       `gorm:"default:false"`
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

// Order is a persisted order document: DRAFT while resumable, PAID after
// checkout. Monetary columns hold two-decimal display strings.
type Order struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	OrderNumber string `gorm:"uniqueIndex;not null"`
	CustomerID  *int64
	Status      string `gorm:"type:varchar(16);index;not null"`
	OrderType   string `gorm:"type:varchar(32);not null"`
	DeliveryFee string `gorm:"type:varchar(32);not null;default:'0.00'"`

	Subtotal       string `gorm:"type:varchar(32);not null;default:'0.00'"`
	DiscountAmount string `gorm:"type:varchar(32);not null;default:'0.00'"`
	TaxAmount      string `gorm:"type:varchar(32);not null;default:'0.00'"`
	TotalAmount    string `gorm:"type:varchar(32);not null;default:'0.00'"`
	PaymentType    *string

	CreatedAt time.Time
	UpdatedAt time.Time

	Items    []OrderItem `gorm:"foreignKey:OrderID"`
	Customer *Customer   `gorm:"foreignKey:CustomerID"`
}

// OrderItem is one custom product tuple of a persisted order. Cart lines
// are flattened into description/price/quantity/taxability; line identity
// inside the live cart does not survive the round trip.
type OrderItem struct {
	ID          int64       `gorm:"primaryKey;autoIncrement"`
	OrderID     int64       `gorm:"index;not null"`
	Description string      `gorm:"not null"`
	Price       string      `gorm:"type:varchar(32);not null"`
	Quantity    int64       `gorm:"not null"`
	Taxable     bool        `gorm:"not null"`
	CategoryIDs StringArray `gorm:"type:jsonb"`
	CreatedAt   time.Time
}

func Migrate(db *gorm.DB) error {
	db.AutoMigrate(&Cashier{})
	db.AutoMigrate(&Customer{})
	db.AutoMigrate(&Order{})
	db.AutoMigrate(&OrderItem{})
	return nil
}

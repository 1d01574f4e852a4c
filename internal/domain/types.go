package domain

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleFieldUser Role = "FIELD_USER"
)

// ParseRole accepts the stored form of a role, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleFieldUser:
		return RoleFieldUser, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Store is a kiosk site. Stores are reference data and never change at runtime.
type Store struct {
	ID          string `json:"id" toml:"id"`
	District    string `json:"district" toml:"district"`
	StoreNumber string `json:"storeNumber" toml:"store_number"`
	StoreName   string `json:"storeName" toml:"store_name"`
	Address     string `json:"address" toml:"address"`
}

type GeoLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Category string

const (
	CategoryBefore    Category = "BEFORE"
	CategoryAfter     Category = "AFTER"
	CategoryReceiving Category = "RECEIVING"
)

// Categories lists the photo phases in workflow order.
var Categories = []Category{CategoryBefore, CategoryAfter, CategoryReceiving}

// ParseCategory accepts BEFORE/AFTER/RECEIVING in any case.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case CategoryBefore:
		return CategoryBefore, nil
	case CategoryAfter:
		return CategoryAfter, nil
	case CategoryReceiving:
		return CategoryReceiving, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// RequiredCount is the minimum number of images a finished project holds
// for the category.
func (c Category) RequiredCount() int {
	switch c {
	case CategoryBefore:
		return 6
	case CategoryAfter:
		return 9
	case CategoryReceiving:
		return 2
	default:
		return 0
	}
}

// CapturedImage is a watermarked photo. The encoded JPEG lives in the photo
// store under StorageKey; Timestamp and Location are fixed at capture time.
type CapturedImage struct {
	ID         string      `json:"id"`
	StorageKey string      `json:"storageKey"`
	MimeType   string      `json:"mimeType"`
	Timestamp  string      `json:"timestamp"`
	CapturedAt time.Time   `json:"capturedAt"`
	Location   GeoLocation `json:"location"`
	Category   Category    `json:"type"`
}

type ProjectStatus string

const (
	StatusPending   ProjectStatus = "PENDING"
	StatusCompleted ProjectStatus = "COMPLETED"
)

type ProjectImages struct {
	Before    []CapturedImage `json:"before"`
	After     []CapturedImage `json:"after"`
	Receiving []CapturedImage `json:"receiving"`
}

// ByCategory returns the collection for c, or nil for an unknown category.
func (pi ProjectImages) ByCategory(c Category) []CapturedImage {
	switch c {
	case CategoryBefore:
		return pi.Before
	case CategoryAfter:
		return pi.After
	case CategoryReceiving:
		return pi.Receiving
	default:
		return nil
	}
}

// Total is the number of images across all categories.
func (pi ProjectImages) Total() int {
	return len(pi.Before) + len(pi.After) + len(pi.Receiving)
}

type Project struct {
	ID          string        `json:"id"`
	StoreID     string        `json:"storeId"`
	UserID      string        `json:"userId"`
	Status      ProjectStatus `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Images      ProjectImages `json:"images"`
	Audit       string        `json:"audit,omitempty"`
}

type DashboardStats struct {
	Total     int
	Completed int
	Pending   int
}

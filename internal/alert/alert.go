package alert

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

var ErrNoCategory = errors.New("alert: category is required")

type CategoryID string

const (
	Medical      CategoryID = "medical"
	Financial    CategoryID = "financial"
	Disaster     CategoryID = "disaster"
	Legal        CategoryID = "legal"
	MentalHealth CategoryID = "mental_health"
)

// Category is one entry of the fixed emergency taxonomy. The set is closed;
// categories are configuration, never user-created.
type Category struct {
	ID          CategoryID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

var categories = []Category{
	{Medical, "Medical", "Urgent medical attention, injury, or health crisis."},
	{Financial, "Financial", "Urgent need for funds for housing, food, or medical bills."},
	{Disaster, "Disaster", "Natural disaster like flood, fire, or earthquake."},
	{Legal, "Legal", "Urgent legal help or advice needed."},
	{MentalHealth, "Mental Health", "Experiencing a mental health crisis and need support."},
}

// Categories returns the taxonomy in presentation order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func CategoryByID(id string) (Category, bool) {
	for _, c := range categories {
		if string(c.ID) == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryByName resolves a display name as the NLU reports it. Matching is
// case-insensitive and tolerates the underscore form of multi-word names.
func CategoryByName(name string) (Category, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "_", " ")
	for _, c := range categories {
		if strings.ToLower(c.Name) == n || strings.ReplaceAll(string(c.ID), "_", " ") == n {
			return c, true
		}
	}
	return Category{}, false
}

// GeoPoint is a device position. A nil *GeoPoint is the normal representation
// of "no location"; it is not an error state.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (g GeoPoint) String() string {
	return fmt.Sprintf("%.4f, %.4f", g.Lat, g.Lng)
}

// Alert is the terminal record both intake flows produce. It is immutable
// after construction; ownership passes to whoever received it.
type Alert struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Details   string    `json:"details"`
	Location  *GeoPoint `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

var seq atomic.Uint64

func newID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixMilli(), seq.Add(1))
}

// New builds an alert from the manual flow. The category must be set; details
// may be empty, location may be nil.
func New(cat Category, details string, loc *GeoPoint) (*Alert, error) {
	return build("ALRT", cat, details, loc)
}

// NewVoice builds an alert from the voice flow.
func NewVoice(cat Category, details string, loc *GeoPoint) (*Alert, error) {
	return build("ALRT-VOICE", cat, details, loc)
}

func build(prefix string, cat Category, details string, loc *GeoPoint) (*Alert, error) {
	if cat.ID == "" {
		return nil, ErrNoCategory
	}
	return &Alert{
		ID:        newID(prefix),
		Category:  cat,
		Details:   details,
		Location:  loc,
		CreatedAt: time.Now(),
	}, nil
}

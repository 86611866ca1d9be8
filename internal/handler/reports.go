package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/quickbite/api/internal/database"
	"github.com/quickbite/api/internal/enum"
	"github.com/quickbite/api/internal/middleware"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailyOrderSummary(ctx context.Context, arg database.GetDailyOrderSummaryParams) ([]database.GetDailyOrderSummaryRow, error)
	GetItemSales(ctx context.Context, arg database.GetItemSalesParams) ([]database.GetItemSalesRow, error)
	GetLocationComparison(ctx context.Context, arg database.GetLocationComparisonParams) ([]database.GetLocationComparisonRow, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store ReportsStore
	tz    *time.Location
}

// NewReportsHandler creates a new ReportsHandler. Date ranges are read as
// calendar days in tz; nil means UTC.
func NewReportsHandler(store ReportsStore, tz *time.Location) *ReportsHandler {
	if tz == nil {
		tz = time.UTC
	}
	return &ReportsHandler{store: store, tz: tz}
}

// RegisterRoutes registers report endpoints. Callers must already be
// authenticated; location reports are scoped to the caller's location and the
// cross-location comparison is admin only.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/reports/locations", func(r chi.Router) {
		r.With(middleware.RequireRole(enum.UserRoleAdmin)).Get("/", h.LocationComparison)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLocation)
			r.Get("/{location}/daily", h.DailySummary)
			r.Get("/{location}/items", h.ItemSales)
		})
	})
}

// --- Response types ---

type dailySummaryResponse struct {
	Date           string `json:"date"`
	OrderCount     int64  `json:"orderCount"`
	CompletedCount int64  `json:"completedCount"`
	TotalRevenue   string `json:"totalRevenue"`
}

type itemSalesResponse struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	QuantitySold int64  `json:"quantitySold"`
	TotalRevenue string `json:"totalRevenue"`
}

type locationComparisonResponse struct {
	Location     string `json:"location"`
	DisplayName  string `json:"displayName"`
	OrderCount   int64  `json:"orderCount"`
	TotalRevenue string `json:"totalRevenue"`
}

// --- Handlers ---

// DailySummary returns per-day order counts and revenue for a location.
func (h *ReportsHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	loc, err := enum.ParseLocation(chi.URLParam(r, "location"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid location"})
		return
	}

	start, end, err := parseDateRange(r, h.tz, time.Now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailyOrderSummary(r.Context(), database.GetDailyOrderSummaryParams{
		Location: loc,
		Start:    start,
		End:      end,
		TimeZone: h.tz.String(),
	})
	if err != nil {
		log.WithError(err).WithField("location", loc).Error("get daily order summary")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailySummaryResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.Day.Valid {
			date = row.Day.Time.Format("2006-01-02")
		}
		resp[i] = dailySummaryResponse{
			Date:           date,
			OrderCount:     row.OrderCount,
			CompletedCount: row.CompletedCount,
			TotalRevenue:   numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ItemSales returns a location's best selling items by quantity, then revenue.
func (h *ReportsHandler) ItemSales(w http.ResponseWriter, r *http.Request) {
	loc, err := enum.ParseLocation(chi.URLParam(r, "location"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid location"})
		return
	}

	start, end, err := parseDateRange(r, h.tz, time.Now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := h.store.GetItemSales(r.Context(), database.GetItemSalesParams{
		Location: loc,
		Start:    start,
		End:      end,
		Limit:    int32(limit),
	})
	if err != nil {
		log.WithError(err).WithField("location", loc).Error("get item sales")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]itemSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = itemSalesResponse{
			ProductID:    row.ProductID,
			Name:         row.Name,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// LocationComparison returns order volume and revenue for every location.
// Locations without orders in the range are reported with zero totals.
func (h *ReportsHandler) LocationComparison(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, h.tz, time.Now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetLocationComparison(r.Context(), database.GetLocationComparisonParams{
		Start: start,
		End:   end,
	})
	if err != nil {
		log.WithError(err).Error("get location comparison")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	byLocation := make(map[enum.Location]database.GetLocationComparisonRow, len(rows))
	for _, row := range rows {
		byLocation[row.Location] = row
	}

	resp := make([]locationComparisonResponse, len(enum.Locations))
	for i, loc := range enum.Locations {
		row := byLocation[loc]
		resp[i] = locationComparisonResponse{
			Location:     string(loc),
			DisplayName:  loc.DisplayName(),
			OrderCount:   row.OrderCount,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange reads start_date and end_date (YYYY-MM-DD) as calendar days
// in tz. Defaults to the last 30 days through today. The returned end is
// exclusive (midnight after end_date).
func parseDateRange(r *http.Request, tz *time.Location, now time.Time) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	now = now.In(tz)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, tz)
	start := today.AddDate(0, 0, -30)
	end := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, tz)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		start = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, tz)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		end = t.AddDate(0, 0, 1)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return start, end, nil
}

package services

import (
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

// DashboardStats is the admin analytics summary
type DashboardStats struct {
	TotalUsers        int                       `json:"total_users"`
	TotalBookings     int                       `json:"total_bookings"`
	ConfirmedBookings int                       `json:"confirmed_bookings"`
	PendingBookings   int                       `json:"pending_bookings"`
	CancelledBookings int                       `json:"cancelled_bookings"`
	TotalRevenue      float64                   `json:"total_revenue"`
	RecentBookings    []*models.BookingResponse `json:"recent_bookings"`
}

// AnalyticsService aggregates booking and revenue figures for the
// admin dashboard
type AnalyticsService struct {
	users    *database.UserRepository
	bookings *database.BookingRepository
	trips    *database.TripRepository
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(users *database.UserRepository, bookings *database.BookingRepository, trips *database.TripRepository) *AnalyticsService {
	return &AnalyticsService{
		users:    users,
		bookings: bookings,
		trips:    trips,
	}
}

// GetDashboardStats computes the admin dashboard summary
func (s *AnalyticsService) GetDashboardStats() (*DashboardStats, error) {
	totalUsers, err := s.users.CountUsers()
	if err != nil {
		return nil, err
	}

	totalBookings, err := s.bookings.CountBookings()
	if err != nil {
		return nil, err
	}

	confirmed, err := s.bookings.CountByStatus(models.BookingConfirmed)
	if err != nil {
		return nil, err
	}

	pending, err := s.bookings.CountByStatus(models.BookingPendingPayment)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.bookings.CountByStatus(models.BookingCancelled)
	if err != nil {
		return nil, err
	}

	revenue, err := s.bookings.TotalRevenue()
	if err != nil {
		return nil, err
	}

	recent, err := s.bookings.GetRecent(5)
	if err != nil {
		return nil, err
	}

	recentResponses := make([]*models.BookingResponse, 0, len(recent))
	for _, b := range recent {
		trip, err := s.trips.GetTripByID(b.TripID)
		if err != nil {
			return nil, err
		}
		recentResponses = append(recentResponses, &models.BookingResponse{Booking: *b, Trip: trip})
	}

	return &DashboardStats{
		TotalUsers:        totalUsers,
		TotalBookings:     totalBookings,
		ConfirmedBookings: confirmed,
		PendingBookings:   pending,
		CancelledBookings: cancelled,
		TotalRevenue:      revenue,
		RecentBookings:    recentResponses,
	}, nil
}

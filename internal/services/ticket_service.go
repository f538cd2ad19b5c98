package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phpdave11/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/swiftbus/booking-backend/internal/models"
)

// TicketService renders PDF tickets for paid bookings. The QR code
// embeds the booking ID for gate-side verification.
type TicketService struct {
	bookings *BookingService
	trips    tripGetter
}

type tripGetter interface {
	GetTripByID(id uuid.UUID) (*models.Trip, error)
}

// NewTicketService creates a new TicketService
func NewTicketService(bookings *BookingService, trips tripGetter) *TicketService {
	return &TicketService{
		bookings: bookings,
		trips:    trips,
	}
}

// RenderTicket produces the PDF for a booking the user owns.
// Tickets exist only for completed payments.
func (s *TicketService) RenderTicket(bookingID, userID uuid.UUID) ([]byte, error) {
	booking, err := s.bookings.GetBooking(bookingID, userID, false)
	if err != nil {
		return nil, err
	}

	if booking.PaymentState != models.PaymentCompleted || booking.Status != models.BookingConfirmed {
		return nil, models.ErrPaymentNotCompleted
	}

	trip, err := s.trips.GetTripByID(booking.TripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, models.ErrTripNotFound
	}

	return s.render(booking, trip)
}

func (s *TicketService) render(booking *models.Booking, trip *models.Trip) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, "SwiftBus E-Ticket")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(45, 8, label)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 8, value)
		pdf.Ln(8)
	}

	seats := make([]string, len(booking.Seats))
	for i, seat := range booking.Seats {
		seats[i] = fmt.Sprintf("%d", seat)
	}

	line("Booking ID", booking.ID.String())
	line("Operator", trip.OperatorName)
	line("Bus", trip.BusNumber)
	line("Route", fmt.Sprintf("%s to %s", trip.RouteFrom, trip.RouteTo))
	line("Departure", trip.DepartureTime.Format("Mon, 02 Jan 2006 15:04"))
	line("Arrival", trip.ArrivalTime.Format("Mon, 02 Jan 2006 15:04"))
	line("Seats", strings.Join(seats, ", "))
	line("Amount Paid", fmt.Sprintf("%.2f %s", booking.TotalAmount, strings.ToUpper(booking.Currency)))
	line("Status", "CONFIRMED")

	// QR with the booking ID for verification at boarding
	png, err := qrcode.Encode(booking.ID.String(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("booking-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("booking-qr", 150, 30, 40, 40, false, opts, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, "Present this ticket and the QR code when boarding.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket PDF: %w", err)
	}

	return buf.Bytes(), nil
}

// Package driver places bookings on the Playo dashboard's own backend. All
// calls go through the operator's authenticated tab: the page evaluates a
// fetch against api.playo.io with the auth token the dashboard keeps in its
// cookies, so the engine never handles credentials itself.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"courtsync/pkg/browser"
	"courtsync/pkg/config"
	"courtsync/pkg/timeslot"
)

const apiBase = "https://api.playo.io/controller/ppc"

// activityIDs maps canonical sport labels to the dashboard's activity ids.
// The values match the sport dropdown on the booking board.
var activityIDs = map[string]int{
	"Badminton Synthetic":      16214,
	"Badminton Premium Hybrid": 16215,
	"Football 7 a side":        16216,
	"Box Cricket 7 a side":     16217,
	"Snooker":                  16221,
	"Pool 8 Ball":              16224,
	"Snooker Pro":              16225,
}

// apiCallScript runs one backend call from inside the dashboard tab. The
// auth token is read from the playoAuthToken cookie on every call; the
// result carries the HTTP status and the raw body text back to Go.
const apiCallScript = `(async () => {
	let token = '';
	for (const cookie of document.cookie.split(';')) {
		const [name, ...rest] = cookie.trim().split('=');
		if (name === 'playoAuthToken') { token = decodeURIComponent(rest.join('=')); break; }
	}
	if (!token) return {status: 0, body: 'playoAuthToken cookie not found'};
	const payload = %s;
	const opts = {
		method: '%s',
		credentials: 'include',
		headers: {
			'accept': 'application/json',
			'authorization': token,
			'content-type': 'application/json',
			'referer': 'https://dashboard.playo.club/'
		}
	};
	if (payload !== null) opts.body = JSON.stringify(payload);
	const resp = await fetch('%s', opts);
	const text = await resp.text();
	return {status: resp.status, body: text};
})()`

// Order is one slot booking to place, already resolved against the ledger.
type Order struct {
	Sport         string
	Court         string
	SlotStart     time.Time
	SlotEnd       time.Time
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Remarks       string
}

// SlotBooker drives a booking through a live page and returns the
// platform's booking reference.
type SlotBooker interface {
	Book(ctx context.Context, page browser.Page, order *Order) (string, error)
}

type PlayoDriver struct {
	cfg *config.Config
	cal *timeslot.Calendar
}

func NewPlayoDriver(cfg *config.Config, cal *timeslot.Calendar) *PlayoDriver {
	return &PlayoDriver{cfg: cfg, cal: cal}
}

type apiResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func (d *PlayoDriver) call(ctx context.Context, page browser.Page, method, path string, payload any, out any) error {
	body := "null"
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", path, err)
		}
		body = string(encoded)
	}

	script := fmt.Sprintf(apiCallScript, body, method, apiBase+path)

	var res apiResult
	if err := page.Evaluate(ctx, script, &res); err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	if res.Status == 0 {
		return fmt.Errorf("calling %s: %s", path, res.Body)
	}
	if res.Status >= 400 {
		return fmt.Errorf("%s returned %d: %s", path, res.Status, snippet(res.Body))
	}
	if out != nil {
		if err := json.Unmarshal([]byte(res.Body), out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return nil
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200]
	}
	return body
}

type availabilityResponse struct {
	Data []availableCourt `json:"data"`
}

type availableCourt struct {
	CourtID   int             `json:"courtId"`
	CourtName string          `json:"courtName"`
	Slots     []availableSlot `json:"slots"`
}

type availableSlot struct {
	SlotTime  string `json:"slotTime"`
	Price     int    `json:"price"`
	Available int    `json:"available"`
	Status    string `json:"status"`
}

type customerResponse struct {
	Data struct {
		CustomerDetails struct {
			ID int `json:"id"`
		} `json:"customerDetails"`
	} `json:"data"`
}

type bookingResponse struct {
	RequestStatus int             `json:"requestStatus"`
	BookingID     json.RawMessage `json:"bookingId"`
	Message       string          `json:"message"`
}

func (d *PlayoDriver) availability(ctx context.Context, page browser.Page, activityID int, date string) (*availabilityResponse, error) {
	payload := map[string]any{
		"activityIds":       []int{activityID},
		"activityStartDate": date,
		"activityEndDate":   date,
		"customerStatus":    0,
	}

	// The availability endpoint throws occasional 5xx; a short retry rides
	// those out.
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		var out availabilityResponse
		err := d.call(ctx, page, "POST", "/availability", payload, &out)
		if err == nil {
			return &out, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, lastErr
}

func (d *PlayoDriver) addToCart(ctx context.Context, page browser.Page, court *availableCourt, order *Order, activityID, price int) error {
	loc := d.cal.Location()
	start := order.SlotStart.In(loc)
	end := order.SlotEnd.In(loc)
	duration := order.SlotEnd.Sub(order.SlotStart)

	payload := map[string]any{
		"slotDuration": fmt.Sprintf("%02d:%02d:00", int(duration.Hours()), int(duration.Minutes())%60),
		"slot": map[string]any{
			"activityId":    activityID,
			"activityType":  0,
			"count":         1,
			"courtId":       court.CourtID,
			"courtName":     court.CourtName,
			"courtBrothers": []any{},
			"slotDate":      start.Format("2006-01-02"),
			"slotTime":      start.Format("15:04:05"),
			"endTime":       end.Format("15:04:05"),
			"available":     1,
			"blocked":       false,
			"blockingId":    nil,
			"price":         price,
			"slotDiscount":  map[string]any{},
		},
	}
	return d.call(ctx, page, "POST", "/carting/slot/add", payload, nil)
}

func (d *PlayoDriver) lookupCustomer(ctx context.Context, page browser.Page, phone string) (*customerResponse, error) {
	_, mobile := splitDialCode(phone)
	payload := map[string]any{
		"clubId": 1,
		"mobile": mobile,
	}
	var out customerResponse
	if err := d.call(ctx, page, "POST", "/customer/details", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *PlayoDriver) resetCredits(ctx context.Context, page browser.Page) error {
	return d.call(ctx, page, "POST", "/club/credits/reset", nil, nil)
}

func (d *PlayoDriver) applyDiscount(ctx context.Context, page browser.Page, amount int) error {
	return d.call(ctx, page, "POST", "/club/discount/apply", map[string]any{"discountAmount": amount}, nil)
}

func (d *PlayoDriver) createBooking(ctx context.Context, page browser.Page, order *Order, nonMemberID *int, grossAmount int) (string, error) {
	dialCode, mobile := splitDialCode(order.CustomerPhone)
	payload := map[string]any{
		"coupon":             nil,
		"toBeRegistered":     false,
		"memberId":           nil,
		"nonMemberId":        nonMemberID,
		"paymentMode":        "No Pay",
		"bookingRemarks":     order.Remarks,
		"totalPaidAmount":    0,
		"grossAmount":        grossAmount,
		"clubDiscount":       grossAmount,
		"credits":            0,
		"isPatternBooking":   false,
		"patternBookingData": map[string]any{},
		"transactionData":    map[string]any{"type": 1, "mode": 0},
		"sendSMS":            false,
		"sendPaymentLink":    false,
		"customerDetails": map[string]any{
			"name":           order.CustomerName,
			"countryCode":    dialCode,
			"mobile":         mobile,
			"email":          order.CustomerEmail,
			"additionalInfo": "",
			"company":        "",
			"uniqueId":       "",
		},
	}

	var out bookingResponse
	if err := d.call(ctx, page, "POST", "/booking", payload, &out); err != nil {
		return "", err
	}
	if out.RequestStatus != 1 {
		return "", fmt.Errorf("booking rejected: %s", out.Message)
	}
	return strings.Trim(string(out.BookingID), `"`), nil
}

func (d *PlayoDriver) clearCart(ctx context.Context, page browser.Page) error {
	return d.call(ctx, page, "POST", "/carting/clear", nil, nil)
}

// splitDialCode breaks a normalized phone number into the dial code and the
// bare national number the backend expects. A number that does not parse is
// treated as already local.
func splitDialCode(phone string) (dialCode, mobile string) {
	num, err := phonenumbers.Parse(phone, "IN")
	if err != nil {
		return "+91", strings.ReplaceAll(strings.TrimPrefix(phone, "+91"), " ", "")
	}
	return fmt.Sprintf("+%d", num.GetCountryCode()), phonenumbers.GetNationalSignificantNumber(num)
}

// Book runs the whole flow: availability, cart, customer lookup, credits,
// full discount, booking, cart clear. The booking always lands at zero
// balance with SMS and payment links switched off. On any failure the cart
// is cleared best effort so a half-built cart never blocks the next attempt.
func (d *PlayoDriver) Book(ctx context.Context, page browser.Page, order *Order) (string, error) {
	ref, err := d.book(ctx, page, order)
	if err != nil {
		if clearErr := d.clearCart(ctx, page); clearErr != nil {
			d.cfg.Log.Warn("Failed to clear cart after booking failure", "error", clearErr)
		}
		return "", err
	}
	return ref, nil
}

func (d *PlayoDriver) book(ctx context.Context, page browser.Page, order *Order) (string, error) {
	activityID, ok := activityIDs[order.Sport]
	if !ok {
		return "", fmt.Errorf("unknown sport %q", order.Sport)
	}

	date := order.SlotStart.In(d.cal.Location()).Format("2006-01-02")
	availability, err := d.availability(ctx, page, activityID, date)
	if err != nil {
		return "", err
	}

	court, price, err := d.findSlot(availability, order)
	if err != nil {
		return "", err
	}

	if err := d.addToCart(ctx, page, court, order, activityID, price); err != nil {
		return "", err
	}

	customer, err := d.lookupCustomer(ctx, page, order.CustomerPhone)
	if err != nil {
		return "", err
	}
	var nonMemberID *int
	if id := customer.Data.CustomerDetails.ID; id != 0 {
		nonMemberID = &id
	}

	if err := d.resetCredits(ctx, page); err != nil {
		return "", err
	}
	if price > 0 {
		if err := d.applyDiscount(ctx, page, price); err != nil {
			return "", err
		}
	}

	ref, err := d.createBooking(ctx, page, order, nonMemberID, price)
	if err != nil {
		return "", err
	}

	if err := d.clearCart(ctx, page); err != nil {
		d.cfg.Log.Warn("Failed to clear cart after booking", "booking_ref", ref, "error", err)
	}

	d.cfg.Log.Info("Booking placed",
		"sport", order.Sport,
		"court", order.Court,
		"slot_start", order.SlotStart,
		"booking_ref", ref,
	)
	return ref, nil
}

// findSlot locates the order's court and start time in the availability
// payload. The backend names courts with the sport prefixed, so the
// ledger's bare court label is matched as a suffix.
func (d *PlayoDriver) findSlot(availability *availabilityResponse, order *Order) (*availableCourt, int, error) {
	wantTime := order.SlotStart.In(d.cal.Location()).Format("15:04:05")

	for i := range availability.Data {
		court := &availability.Data[i]
		if !matchesCourt(court.CourtName, order.Court) {
			continue
		}
		for _, slot := range court.Slots {
			if slot.SlotTime != wantTime {
				continue
			}
			if slot.Available != 1 {
				return nil, 0, fmt.Errorf("slot %s on %s is not bookable: %s", wantTime, court.CourtName, statusOrDefault(slot.Status))
			}
			return court, slot.Price, nil
		}
		return nil, 0, fmt.Errorf("no %s slot offered on %s", wantTime, court.CourtName)
	}
	return nil, 0, fmt.Errorf("court %q not found for %s", order.Court, order.Sport)
}

func matchesCourt(apiName, court string) bool {
	return strings.EqualFold(apiName, court) ||
		strings.HasSuffix(strings.ToLower(apiName), strings.ToLower(court))
}

func statusOrDefault(status string) string {
	if status == "" {
		return "unavailable"
	}
	return status
}

var _ SlotBooker = (*PlayoDriver)(nil)

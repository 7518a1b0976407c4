package extract

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"courtsync/pkg/browser"
	"courtsync/pkg/config"
	"courtsync/pkg/model"
)

const venueFeedBase = "https://api.hudle.in/api/v1"

type venueSport struct {
	id    string
	label string
}

// hudleSports lists the venue's sport identifiers on the partner backend.
var hudleSports = []venueSport{
	{id: "2", label: "Badminton"},
	{id: "8", label: "Football"},
	{id: "24", label: "Box Cricket"},
	{id: "5", label: "Billiard"},
}

// fetchSlotsScript fires one slot query from inside the partner tab, with
// the session token the dashboard itself keeps in localStorage. Only the
// status comes back here; the payload is picked up off the wire.
const fetchSlotsScript = `(async () => {
	let token = localStorage.getItem('token') || localStorage.getItem('access_token') || localStorage.getItem('authToken') || '';
	if (token && !token.startsWith('Bearer ')) token = 'Bearer ' + token;
	const headers = {
		'accept': '*/*',
		'api-secret': 'hudle-api1798@prod',
		'content-type': 'application/json',
		'x-app-source': 'partner',
		'nr-meta': 'hudle_partner'
	};
	if (token) headers['authorization'] = token;
	const resp = await fetch('%s', { headers: headers });
	return resp.status;
})()`

// HudleExtractor reads the venue feed behind the partner dashboard. The
// partner UI draws its grid from JSON with nothing useful left in the DOM,
// so the extractor watches the tab's network traffic instead: it replays the
// slot queries the dashboard itself makes and collects the response payloads
// as they come back.
type HudleExtractor struct {
	cfg *config.Config
}

func NewHudleExtractor(cfg *config.Config) *HudleExtractor {
	return &HudleExtractor{cfg: cfg}
}

func (e *HudleExtractor) Source() model.Source {
	return model.SourceHudle
}

func (e *HudleExtractor) Extract(ctx context.Context, session browser.SessionProvider, requests []Request) ([]model.RawRecord, error) {
	page, err := session.GetPage(ctx, e.cfg.HudleTabPattern)
	if err != nil {
		return nil, newExtractionError(model.SourceHudle, fmt.Errorf("acquiring partner tab: %w", err))
	}

	fragment := "/api/v1/venues/" + e.cfg.HudleVenueID + "/slots"
	responses, stop, err := page.Observe(ctx, fragment)
	if err != nil {
		return nil, newExtractionError(model.SourceHudle, fmt.Errorf("attaching response observer: %w", err))
	}
	defer stop()

	expected := 0
	for _, req := range requests {
		for _, sport := range hudleSports {
			triggered, err := e.requestSlots(ctx, page, req.Date, sport.id)
			if err != nil {
				return nil, newExtractionError(model.SourceHudle, fmt.Errorf("date %s sport %s: %w", req.Date, sport.label, err))
			}
			if triggered {
				expected++
			}
		}
	}

	payloads, err := e.collect(ctx, responses, expected)
	if err != nil {
		return nil, newExtractionError(model.SourceHudle, err)
	}

	var records []model.RawRecord
	for _, p := range payloads {
		slots, err := parseSlotFeed(p)
		if err != nil {
			return nil, newExtractionError(model.SourceHudle, err)
		}
		for _, slot := range slots {
			records = append(records, model.RawRecord{Source: model.SourceHudle, Hudle: slot})
		}
	}

	e.cfg.Log.Info("Hudle extraction finished",
		"dates", len(requests),
		"responses", len(payloads),
		"records", len(records),
	)
	return records, nil
}

// requestSlots makes the tab fire one venue-feed query. A 404 means the feed
// has no grid for that sport and date, which is not a failure.
func (e *HudleExtractor) requestSlots(ctx context.Context, page browser.Page, date, sportID string) (bool, error) {
	var status int
	if err := page.Evaluate(ctx, fmt.Sprintf(fetchSlotsScript, e.slotsURL(date, sportID)), &status); err != nil {
		return false, fmt.Errorf("firing slot query: %w", err)
	}
	switch {
	case status >= 200 && status < 300:
		return true, nil
	case status == 404:
		return false, nil
	default:
		return false, fmt.Errorf("slot query returned HTTP %d", status)
	}
}

func (e *HudleExtractor) slotsURL(date, sportID string) string {
	return fmt.Sprintf("%s/venues/%s/slots?view_type=1&date=%s&sport=%s&grid=1",
		venueFeedBase, e.cfg.HudleVenueID, date, sportID)
}

// collect drains observed feed responses until every expected payload has
// arrived or the wire has gone quiet. The page re-fetches transparently at
// times, producing byte-identical payloads, so a content hash de-duplicates.
func (e *HudleExtractor) collect(ctx context.Context, responses <-chan browser.ObservedResponse, expected int) ([]browser.ObservedResponse, error) {
	if expected == 0 {
		return nil, nil
	}

	var payloads []browser.ObservedResponse
	seen := make(map[[sha256.Size]byte]struct{})
	idle := time.NewTimer(e.cfg.NetworkIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case resp, ok := <-responses:
			if !ok {
				return payloads, nil
			}
			idle.Reset(e.cfg.NetworkIdleTimeout)
			if resp.Status < 200 || resp.Status >= 300 {
				continue
			}
			digest := sha256.Sum256(resp.Body)
			if _, dup := seen[digest]; dup {
				continue
			}
			seen[digest] = struct{}{}
			payloads = append(payloads, resp)
			if len(payloads) >= expected {
				return payloads, nil
			}
		case <-idle.C:
			return payloads, nil
		}
	}
}

// venueFeed is the slice of the partner payload the grid is drawn from.
type venueFeed struct {
	Data struct {
		SlotData []struct {
			GroupName string `json:"group_name"`
			Slots     []struct {
				ID          json.Number `json:"id"`
				StartTime   string      `json:"start_time"`
				EndTime     string      `json:"end_time"`
				IsBooked    bool        `json:"is_booked"`
				IsAvailable bool        `json:"is_available"`
			} `json:"slots"`
		} `json:"slot_data"`
	} `json:"data"`
}

func parseSlotFeed(resp browser.ObservedResponse) ([]*model.RawHudleSlot, error) {
	date, sportID, err := feedQuery(resp.URL)
	if err != nil {
		return nil, err
	}

	var feed venueFeed
	if err := json.Unmarshal(resp.Body, &feed); err != nil {
		return nil, fmt.Errorf("decoding venue feed for %s: %w", date, err)
	}

	var slots []*model.RawHudleSlot
	for _, group := range feed.Data.SlotData {
		for _, s := range group.Slots {
			if s.StartTime == "" {
				continue
			}
			slots = append(slots, &model.RawHudleSlot{
				Date:      date,
				StartTime: s.StartTime,
				EndTime:   s.EndTime,
				SportID:   sportID,
				GroupName: group.GroupName,
				SlotID:    s.ID.String(),
				IsBooked:  s.IsBooked,
				IsLocked:  !s.IsBooked && !s.IsAvailable,
			})
		}
	}
	return slots, nil
}

func feedQuery(raw string) (date, sportID string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parsing feed URL %q: %w", raw, err)
	}
	q := u.Query()
	date, sportID = q.Get("date"), q.Get("sport")
	if date == "" || sportID == "" {
		return "", "", fmt.Errorf("feed URL %q carries no date or sport", raw)
	}
	return date, sportID, nil
}

package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"courtsync/pkg/browser"
	"courtsync/pkg/config"
	"courtsync/pkg/model"
	"courtsync/pkg/sanitizer"
	"courtsync/pkg/timeslot"
)

// Board cell states exactly as the dashboard presents them; translating them
// into ledger statuses is the normalizer's job.
const (
	playoStateAvailable = "Available"
	playoStateLocked    = "Locked"
	playoStateBooked    = "Booked"
)

const (
	datePickerSelector = ".react-datepicker__input-container input"
	dateVerifyRetries  = 3
)

// Settle pauses between driving a board control and reading the result back.
var (
	dateSettleDelay = 2 * time.Second
	gridSettleDelay = 1500 * time.Millisecond
)

type boardSport struct {
	name  string
	value string
}

// playoSports mirrors the dashboard's sport dropdown; the values are the
// option values the board uses internally.
var playoSports = []boardSport{
	{name: "Badminton Synthetic", value: "16214"},
	{name: "Badminton Premium Hybrid", value: "16215"},
	{name: "Football 7 a side", value: "16216"},
	{name: "Box Cricket 7 a side", value: "16217"},
	{name: "Snooker", value: "16221"},
	{name: "Pool 8 Ball", value: "16224"},
	{name: "Snooker Pro", value: "16225"},
}

// The dashboard is a React app, so plain value assignment is invisible to
// it: fields are set through the native prototype setters and the change is
// announced with synthetic events, the same way a user edit would be.
const (
	openCalendarScript = `(async () => {
	const sleep = (ms) => new Promise(r => setTimeout(r, ms));
	const visibleButton = (text) => Array.from(document.querySelectorAll('div[role="button"]'))
		.find(el => el.textContent.trim().includes(text) && el.offsetParent !== null);
	let calendar = visibleButton('Calendar');
	if (!calendar) {
		const schedule = visibleButton('Schedule');
		if (!schedule) return false;
		schedule.click();
		await sleep(1000);
		calendar = visibleButton('Calendar');
	}
	if (!calendar) return false;
	calendar.click();
	await sleep(3000);
	return true;
})()`

	setDateScript = `(async () => {
	const input = document.querySelector('.react-datepicker__input-container input');
	if (!input) return false;
	const setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, 'value').set;
	input.focus();
	setter.call(input, '%s');
	input.dispatchEvent(new Event('input', { bubbles: true }));
	await new Promise(r => setTimeout(r, 500));
	input.dispatchEvent(new KeyboardEvent('keydown', { key: 'Enter', keyCode: 13, bubbles: true }));
	await new Promise(r => setTimeout(r, 300));
	input.blur();
	return true;
})()`

	readDateScript = `(() => {
	const input = document.querySelector('.react-datepicker__input-container input');
	return input ? input.value : '';
})()`

	selectSportScript = `(async () => {
	const select = document.querySelector("select[id*='SelectField']");
	if (!select) return false;
	const setter = Object.getOwnPropertyDescriptor(window.HTMLSelectElement.prototype, 'value').set;
	setter.call(select, '%s');
	select.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})()`
)

// PlayoExtractor scrapes the booking board's calendar grid. The operator
// keeps an authenticated dashboard tab open; extraction drives that tab's
// date picker and sport dropdown, then parses the rendered grid out of the
// DOM.
type PlayoExtractor struct {
	cfg *config.Config
	cal *timeslot.Calendar
}

func NewPlayoExtractor(cfg *config.Config, cal *timeslot.Calendar) *PlayoExtractor {
	return &PlayoExtractor{cfg: cfg, cal: cal}
}

func (e *PlayoExtractor) Source() model.Source {
	return model.SourcePlayo
}

func (e *PlayoExtractor) Extract(ctx context.Context, session browser.SessionProvider, requests []Request) ([]model.RawRecord, error) {
	page, err := session.GetPage(ctx, e.cfg.PlayoTabPattern)
	if err != nil {
		return nil, newExtractionError(model.SourcePlayo, fmt.Errorf("acquiring board tab: %w", err))
	}

	if err := e.ensureBoard(ctx, page); err != nil {
		return nil, newExtractionError(model.SourcePlayo, err)
	}

	var records []model.RawRecord
	for _, req := range requests {
		if err := e.setDate(ctx, page, req.Date); err != nil {
			return nil, newExtractionError(model.SourcePlayo, fmt.Errorf("date %s: %w", req.Date, err))
		}
		for _, sport := range boardSportsFor(req.Sports) {
			cells, err := e.scrapeSport(ctx, page, sport)
			if err != nil {
				return nil, newExtractionError(model.SourcePlayo, fmt.Errorf("date %s sport %s: %w", req.Date, sport.name, err))
			}
			for _, cell := range cells {
				records = append(records, model.RawRecord{Source: model.SourcePlayo, Playo: cell})
			}
		}
	}

	e.cfg.Log.Info("Playo extraction finished", "dates", len(requests), "records", len(records))
	return records, nil
}

// ensureBoard gets the dashboard tab onto the calendar view. The picker is
// already there when the operator left the tab on it; otherwise the Calendar
// navigation entry is clicked, expanding the Schedule section first when the
// sidebar has it collapsed.
func (e *PlayoExtractor) ensureBoard(ctx context.Context, page browser.Page) error {
	if e.pickerVisible(ctx, page) {
		return nil
	}

	var opened bool
	if err := page.Evaluate(ctx, openCalendarScript, &opened); err != nil {
		return fmt.Errorf("opening calendar view: %w", err)
	}
	if !opened {
		return fmt.Errorf("calendar navigation not found")
	}
	if !e.pickerVisible(ctx, page) {
		return fmt.Errorf("calendar view did not appear")
	}
	return nil
}

func (e *PlayoExtractor) pickerVisible(ctx context.Context, page browser.Page) bool {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.DOMWaitTimeout)
	defer cancel()
	return page.WaitVisible(waitCtx, datePickerSelector) == nil
}

func (e *PlayoExtractor) setDate(ctx context.Context, page browser.Page, date string) error {
	label, err := e.cal.NavLabel(date)
	if err != nil {
		return err
	}

	var filled bool
	if err := page.Evaluate(ctx, fmt.Sprintf(setDateScript, label), &filled); err != nil {
		return fmt.Errorf("setting date picker: %w", err)
	}
	if !filled {
		return fmt.Errorf("date picker input not found")
	}

	// The grid re-renders asynchronously after a date change; trust the
	// board only once the picker reads the new value back.
	want := strings.ReplaceAll(label, " ", "")
	for attempt := 0; attempt < dateVerifyRetries; attempt++ {
		if err := settle(ctx, dateSettleDelay); err != nil {
			return err
		}
		var current string
		if err := page.Evaluate(ctx, readDateScript, &current); err != nil {
			return fmt.Errorf("reading date picker: %w", err)
		}
		if strings.ReplaceAll(current, " ", "") == want {
			return nil
		}
	}
	return fmt.Errorf("board stayed on the wrong date after switching to %s", label)
}

func (e *PlayoExtractor) scrapeSport(ctx context.Context, page browser.Page, sport boardSport) ([]*model.RawPlayoCell, error) {
	var selected bool
	if err := page.Evaluate(ctx, fmt.Sprintf(selectSportScript, sport.value), &selected); err != nil {
		return nil, fmt.Errorf("selecting sport: %w", err)
	}
	if !selected {
		return nil, fmt.Errorf("sport dropdown not found")
	}
	if err := settle(ctx, gridSettleDelay); err != nil {
		return nil, err
	}

	var label string
	if err := page.Evaluate(ctx, readDateScript, &label); err != nil {
		return nil, fmt.Errorf("reading date picker: %w", err)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading board DOM: %w", err)
	}
	return parseBoardGrid(html, sport.name, label)
}

// boardSportsFor narrows the dropdown iteration to the named sports. Unknown
// names are ignored; an empty or entirely unknown filter scrapes everything.
func boardSportsFor(names []string) []boardSport {
	names = sanitizer.NormalizeLabels(names)
	if len(names) == 0 {
		return playoSports
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[strings.ToLower(n)] = struct{}{}
	}
	var filtered []boardSport
	for _, s := range playoSports {
		if _, ok := wanted[strings.ToLower(s.name)]; ok {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return playoSports
	}
	return filtered
}

var slotTimePattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*([ap]m)?\s*-\s*\d{1,2}:\d{2}\s*([ap]m)`)

// parseBoardGrid reads the calendar grid out of a rendered dashboard page.
// The board nests several layout tables; the one with the most rows is the
// grid. Each grid row opens with a "6:00 - 7:00 PM" style range followed by
// one cell per court.
func parseBoardGrid(html, sportName, dateLabel string) ([]*model.RawPlayoCell, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing board DOM: %w", err)
	}

	headers, rows := gridRows(doc, densestTable(doc))

	var cells []*model.RawPlayoCell
	seen := make(map[string]struct{})
	rows.Each(func(_ int, row *goquery.Selection) {
		cols := row.Children()
		timeIdx, start := findTimeColumn(cols)
		if timeIdx < 0 {
			return
		}
		cols.Each(func(idx int, col *goquery.Selection) {
			if idx <= timeIdx {
				return
			}
			state := classifyCell(col)
			if state == "" {
				return
			}
			court := courtName(headers, idx, timeIdx, sportName)
			key := start + "|" + court
			if _, dup := seen[key]; dup {
				return
			}
			seen[key] = struct{}{}
			cells = append(cells, &model.RawPlayoCell{
				DateLabel: dateLabel,
				StartTime: start,
				Sport:     sportName,
				Court:     court,
				State:     state,
			})
		})
	})
	return cells, nil
}

func densestTable(doc *goquery.Document) *goquery.Selection {
	var grid *goquery.Selection
	maxRows := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if n := table.Find("tr").Length(); n > maxRows {
			maxRows = n
			grid = table
		}
	})
	return grid
}

func gridRows(doc *goquery.Document, grid *goquery.Selection) ([]string, *goquery.Selection) {
	if grid == nil {
		return nil, doc.Find("tr")
	}
	headerRow := grid.Find("thead tr").First()
	if headerRow.Length() == 0 {
		headerRow = grid.Find("tr").First()
	}
	var headers []string
	headerRow.Children().Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, sanitizer.NormalizeLabel(cell.Text()))
	})
	rows := grid.Find("tbody tr")
	if rows.Length() == 0 {
		rows = grid.Find("tr")
	}
	return headers, rows
}

// findTimeColumn looks for the slot time range within the first three cells
// of a row; layout rows without one are skipped entirely.
func findTimeColumn(cols *goquery.Selection) (int, string) {
	timeIdx, start := -1, ""
	cols.EachWithBreak(func(i int, col *goquery.Selection) bool {
		if i >= 3 {
			return false
		}
		if s, ok := parseSlotTime(col.Text()); ok {
			timeIdx, start = i, s
			return false
		}
		return true
	})
	return timeIdx, start
}

// parseSlotTime converts "6:00 - 7:00 PM" into a 24h start clock. A meridiem
// written on the start wins; otherwise the range end's covers both.
func parseSlotTime(text string) (string, bool) {
	m := slotTimePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	meridiem := m[4]
	if m[3] != "" {
		meridiem = m[3]
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	return sanitizer.To24Hour(hour, m[2], meridiem), true
}

// classifyCell reads a grid cell's booking state. Bookable cells render an
// action button; taken cells render the customer's name or a flat label.
func classifyCell(cell *goquery.Selection) string {
	var buttons []string
	cell.Find(`button, [role="button"], .btn`).Each(func(_ int, b *goquery.Selection) {
		buttons = append(buttons, strings.ToLower(strings.TrimSpace(b.Text())))
	})
	for _, t := range buttons {
		if strings.Contains(t, "book") || strings.Contains(t, "block") || strings.Contains(t, "₹") {
			return playoStateAvailable
		}
	}
	for _, t := range buttons {
		if strings.Contains(t, "locked") {
			return playoStateLocked
		}
	}

	text := strings.TrimSpace(cell.Text())
	lower := sanitizer.NormalizeStatusWord(text)
	if lower == "booked" || lower == "full" || strings.Contains(lower, "locked") {
		return playoStateBooked
	}
	// Anything longer than a stray glyph is a customer name on a taken slot,
	// unless it is a price tag.
	if len([]rune(text)) > 3 && !strings.Contains(text, "₹") {
		return playoStateBooked
	}
	return ""
}

func courtName(headers []string, idx, timeIdx int, sportName string) string {
	if idx < len(headers) && headers[idx] != "" {
		return renameCourt(headers[idx], sportName)
	}
	return fmt.Sprintf("Court %d", idx-timeIdx)
}

var (
	courtWord = regexp.MustCompile(`(?i)court`)
	tableWord = regexp.MustCompile(`(?i)table`)
)

// renameCourt maps the board's generic "Court N" headers onto the noun each
// sport actually uses on the ground.
func renameCourt(name, sportName string) string {
	switch {
	case strings.Contains(sportName, "Snooker") || strings.Contains(sportName, "Pool") || strings.Contains(sportName, "Table Tennis"):
		return courtWord.ReplaceAllString(name, "Table")
	case strings.Contains(sportName, "Football") || strings.Contains(sportName, "Cricket"):
		return tableWord.ReplaceAllString(courtWord.ReplaceAllString(name, "Turf"), "Turf")
	}
	return name
}

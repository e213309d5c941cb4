// Package prizes serves the weekly prize catalogue. The catalogue is a JSON
// file that is re-read whenever its modification time changes.
package prizes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prize statuses
const (
	StatusComingSoon = "coming-soon"
	StatusAvailable  = "available"
)

const comingSoon = "Coming soon"

// ErrInvalidFile is returned when the catalogue is not valid JSON
var ErrInvalidFile = errors.New("prize configuration file is not valid JSON")

// Item is one entry of a main or special prize gallery
type Item struct {
	AssetID *uint64 `json:"assetId"`
	ASA     *string `json:"asa"`
	Image   *string `json:"image"`
	Title   *string `json:"title"`
}

// Prize is the catalogue entry of one week
type Prize struct {
	Week          int      `json:"week"`
	ASA           string   `json:"asa"`
	AssetID       *uint64  `json:"assetId"`
	Image         *string  `json:"image"`
	Status        string   `json:"status"`
	MainPrizes    []Item   `json:"mainPrizes"`
	SpecialPrizes []Item   `json:"specialPrizes"`
	MainAssetIDs  []uint64 `json:"mainAssetIds"`
}

// Available reports whether the week's prize details are published
func (p Prize) Available() bool {
	return p.Status == StatusAvailable
}

// DefaultPrize is the placeholder for a week missing from the catalogue
func DefaultPrize(week int) Prize {
	return Prize{
		Week:          week,
		ASA:           comingSoon,
		Status:        StatusComingSoon,
		MainPrizes:    []Item{},
		SpecialPrizes: []Item{},
		MainAssetIDs:  []uint64{},
	}
}

// Store reads the catalogue file
type Store struct {
	path       string
	totalWeeks int
	logger     *zap.Logger

	mu     sync.Mutex
	weeks  []Prize
	byWeek map[int]Prize
	mtime  time.Time
	loaded bool
}

// NewStore creates a store over path
func NewStore(path string, totalWeeks int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, totalWeeks: totalWeeks, logger: logger}
}

// TotalWeeks is the number of weeks in the catalogue
func (s *Store) TotalWeeks() int {
	return s.totalWeeks
}

// All returns the entries of weeks 1..TotalWeeks
func (s *Store) All() ([]Prize, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	out := make([]Prize, len(s.weeks))
	for i, p := range s.weeks {
		out[i] = clonePrize(p)
	}
	return out, nil
}

// Week returns the entry of one week. ok is false when week is out of range.
func (s *Store) Week(week int) (prize Prize, ok bool, err error) {
	if week < 1 || week > s.totalWeeks {
		return Prize{}, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return Prize{}, false, err
	}
	if p, found := s.byWeek[week]; found {
		return clonePrize(p), true, nil
	}
	return DefaultPrize(week), true, nil
}

func (s *Store) load() error {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.install(map[int]Prize{})
		s.mtime = time.Time{}
		s.loaded = false
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat prize file: %w", err)
	}
	if s.loaded && info.ModTime().Equal(s.mtime) {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read prize file: %w", err)
	}
	byWeek, err := parseCatalogue(data)
	if err != nil {
		return err
	}
	s.install(byWeek)
	s.mtime = info.ModTime()
	s.loaded = true

	s.logger.Debug("Prize catalogue loaded",
		zap.String("path", s.path),
		zap.Int("entries", len(byWeek)),
	)
	return nil
}

func (s *Store) install(byWeek map[int]Prize) {
	weeks := make([]Prize, 0, s.totalWeeks)
	for week := 1; week <= s.totalWeeks; week++ {
		p, ok := byWeek[week]
		if !ok {
			p = DefaultPrize(week)
			byWeek[week] = p
		}
		weeks = append(weeks, p)
	}
	s.weeks = weeks
	s.byWeek = byWeek
}

func parseCatalogue(data []byte) (map[int]Prize, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, ErrInvalidFile
	}

	byWeek := make(map[int]Prize)
	list, ok := parsed.([]interface{})
	if !ok {
		return byWeek, nil
	}
	for _, raw := range list {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if p, ok := normaliseEntry(obj); ok {
			byWeek[p.Week] = p
		}
	}
	return byWeek, nil
}

func normaliseEntry(raw map[string]interface{}) (Prize, bool) {
	week, ok := parseWeek(raw["week"])
	if !ok || week < 1 {
		return Prize{}, false
	}
	entry := DefaultPrize(week)

	switch asa := pick(raw, "asa", "ASA", "assetId", "asset", "id").(type) {
	case []interface{}:
		labels := make([]string, 0, len(asa))
		for _, v := range asa {
			if label := normaliseString(v); label != "" {
				labels = append(labels, label)
			}
		}
		if len(labels) > 0 {
			entry.ASA = strings.Join(labels, " · ")
		}
		for _, v := range asa {
			if id, ok := normaliseAssetID(v); ok {
				entry.AssetID = &id
				break
			}
		}
	default:
		if label := normaliseString(asa); label != "" {
			entry.ASA = label
			if id, ok := normaliseAssetID(label); ok {
				entry.AssetID = &id
				entry.ASA = strconv.FormatUint(id, 10)
			}
		}
	}

	if image := normaliseString(pick(raw, "image", "imageName", "assetImage", "filename")); image != "" {
		entry.Image = &image
	}

	if main := normaliseItems(pick(raw, "mainPrizes", "gallery", "mainPrizeImages")); len(main) > 0 {
		entry.MainPrizes = main
		for _, item := range main {
			if item.AssetID != nil {
				entry.MainAssetIDs = append(entry.MainAssetIDs, *item.AssetID)
			}
		}
		if entry.Image == nil {
			for _, item := range main {
				if item.Image != nil {
					img := *item.Image
					entry.Image = &img
					break
				}
			}
		}
		if entry.ASA == comingSoon {
			labels := make([]string, 0, len(main))
			for _, item := range main {
				if item.ASA != nil {
					labels = append(labels, *item.ASA)
				}
			}
			if len(labels) > 0 {
				entry.ASA = strings.Join(labels, " · ")
			}
		}
		if entry.AssetID == nil && len(entry.MainAssetIDs) > 0 {
			id := entry.MainAssetIDs[0]
			entry.AssetID = &id
		}
	}

	if special := normaliseItems(raw["specialPrizes"]); len(special) > 0 {
		entry.SpecialPrizes = special
	}

	if entry.AssetID != nil && (entry.Image != nil || len(entry.MainPrizes) > 0) {
		entry.Status = StatusAvailable
	}
	return entry, true
}

func normaliseItems(raw interface{}) []Item {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Item, 0, len(list))
	for _, v := range list {
		var obj map[string]interface{}
		switch tv := v.(type) {
		case string, json.Number:
			obj = map[string]interface{}{"assetId": tv}
		case map[string]interface{}:
			obj = tv
		default:
			continue
		}
		item := normaliseItem(obj)
		if item.AssetID != nil || item.Image != nil || item.Title != nil {
			out = append(out, item)
		}
	}
	return out
}

func normaliseItem(raw map[string]interface{}) Item {
	var item Item
	if id, ok := normaliseAssetID(pick(raw, "assetId", "asa", "id", "asset")); ok {
		item.AssetID = &id
	}
	if label := normaliseString(pick(raw, "asa", "ASA", "assetId", "id", "asset")); label != "" {
		item.ASA = &label
	} else if item.AssetID != nil {
		label := strconv.FormatUint(*item.AssetID, 10)
		item.ASA = &label
	}
	if image := normaliseString(pick(raw, "image", "imageName", "icon", "filename")); image != "" {
		item.Image = &image
	}
	if title := normaliseString(pick(raw, "title", "name", "label", "description")); title != "" {
		item.Title = &title
	}
	return item
}

// pick returns the first non-null value among keys
func pick(raw map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func normaliseString(v interface{}) string {
	switch tv := v.(type) {
	case json.Number:
		return tv.String()
	case string:
		return strings.TrimSpace(tv)
	}
	return ""
}

func normaliseAssetID(v interface{}) (uint64, bool) {
	switch tv := v.(type) {
	case json.Number:
		if id, err := strconv.ParseUint(tv.String(), 10, 64); err == nil {
			return id, id > 0
		}
		f, err := tv.Float64()
		if err != nil || f < 1 || f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(f), true
	case string:
		trimmed := strings.TrimSpace(tv)
		if !allDigits(trimmed) {
			return 0, false
		}
		id, err := strconv.ParseUint(trimmed, 10, 64)
		return id, err == nil && id > 0
	}
	return 0, false
}

// parseWeek reads an integer prefix the way a lenient form field would
func parseWeek(v interface{}) (int, bool) {
	var s string
	switch tv := v.(type) {
	case json.Number:
		s = tv.String()
	case string:
		s = strings.TrimSpace(tv)
	default:
		return 0, false
	}
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func clonePrize(p Prize) Prize {
	out := p
	out.MainPrizes = append([]Item{}, p.MainPrizes...)
	out.SpecialPrizes = append([]Item{}, p.SpecialPrizes...)
	out.MainAssetIDs = append([]uint64{}, p.MainAssetIDs...)
	return out
}

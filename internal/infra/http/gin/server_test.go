package ginserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"homestay/internal/app/bootstrap"
	"homestay/internal/app/commands"
	referenceapp "homestay/internal/app/handlers/references"
	domainreferences "homestay/internal/domain/references"
	"homestay/internal/infra/cache"
	"homestay/internal/infra/config"
	ginserver "homestay/internal/infra/http/gin"
	"homestay/internal/infra/obs"
	"homestay/internal/infra/storage/memory"
)

type testAPI struct {
	handler http.Handler
	outbox  *memory.Outbox
	photos  *memory.PhotoStorage
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	box := memory.NewOutbox()
	photos := &memory.PhotoStorage{BaseURL: "http://media.test"}
	factory := memory.Factory{Store: memory.NewStore(), Outbox: box}
	buses, err := bootstrap.Build(bootstrap.Deps{
		Logger:       logger,
		UoWFactory:   factory,
		Outbox:       box,
		Idempotency:  memory.NewIdempotencyStore(time.Hour),
		Photos:       photos,
		Cache:        cache.NewMemory(),
		CacheTTL:     time.Minute,
		BaseCurrency: "USD",
	})
	if err != nil {
		t.Fatalf("build buses: %v", err)
	}
	if _, err := commands.Dispatch[referenceapp.LoadReferencesCommand, int](context.Background(), buses.Commands, referenceapp.LoadReferencesCommand{
		Catalog: domainreferences.Defaults(),
	}); err != nil {
		t.Fatalf("load references: %v", err)
	}

	router := ginserver.NewRouter(config.Config{Env: "test"}, obs.Middleware{Logger: logger}, obs.HealthHandlers{}, ginserver.Handlers{
		Listing:      ginserver.ListingHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Pricing:      ginserver.PricingHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Reservation:  ginserver.ReservationHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Availability: ginserver.AvailabilityHandler{Queries: buses.Queries, Logger: logger},
		Reference:    ginserver.ReferenceHandler{Queries: buses.Queries, Logger: logger},
	})
	return testAPI{handler: router, outbox: box, photos: photos}
}

func (a testAPI) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

type listingResponse struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	ObjectType string `json:"object_type"`
	MaxGuests  int    `json:"max_guests"`
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
	Dates  []string          `json:"dates"`
}

func createListing(t *testing.T, api testAPI, title string) listingResponse {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title":      title,
		"max_guests": 4,
		"bedrooms":   2,
		"beds":       2,
		"bathrooms":  1,
		"amenities":  []string{"wifi"},
	}, nil)
	expectStatus(t, rec, http.StatusCreated)
	return decode[listingResponse](t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	expectStatus(t, api.do(t, http.MethodGet, "/livez", nil, nil), http.StatusOK)
	expectStatus(t, api.do(t, http.MethodGet, "/readyz", nil, nil), http.StatusOK)
}

func TestListingLifecycle(t *testing.T) {
	api := newTestAPI(t)
	created := createListing(t, api, "Sunny Loft")
	if created.Slug != "sunny-loft" {
		t.Fatalf("expected slug sunny-loft, got %q", created.Slug)
	}
	if created.ObjectType != "apartment" {
		t.Fatalf("expected default object type, got %q", created.ObjectType)
	}

	rec := api.do(t, http.MethodPut, "/api/v1/listings/sunny-loft", map[string]any{
		"title":      "Sunny Loft",
		"max_guests": 6,
		"bedrooms":   3,
		"beds":       3,
	}, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[listingResponse](t, rec); got.MaxGuests != 6 {
		t.Fatalf("update not applied: %+v", got)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/listings?guests=5", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	page := decode[struct {
		Items []listingResponse `json:"items"`
		Total int               `json:"total"`
	}](t, rec)
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one search hit, got %+v", page)
	}

	expectStatus(t, api.do(t, http.MethodDelete, "/api/v1/listings/sunny-loft", nil, nil), http.StatusNoContent)
	expectStatus(t, api.do(t, http.MethodGet, "/api/v1/listings/sunny-loft", nil, nil), http.StatusNotFound)
}

func TestListingValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title":      "",
		"max_guests": 2,
		"bedrooms":   1,
		"beds":       1,
	}, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	body := decode[errorBody](t, rec)
	if _, ok := body.Fields["title"]; !ok {
		t.Fatalf("expected a title error, got %+v", body)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/listings", map[string]any{
		"title":      "Cabin",
		"max_guests": 2,
		"bedrooms":   1,
		"beds":       1,
		"amenities":  []string{"sauna"},
	}, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rec); body.Fields["amenities"] == "" {
		t.Fatalf("expected an amenities error, got %+v", body)
	}

	expectStatus(t, api.do(t, http.MethodGet, "/api/v1/listings/nowhere", nil, nil), http.StatusNotFound)
}

func TestPriceTagOverlapReportsDates(t *testing.T) {
	api := newTestAPI(t)
	createListing(t, api, "Loft")

	rec := api.do(t, http.MethodPost, "/api/v1/listings/loft/price-tags", map[string]any{
		"start_date": "2024-01-01",
		"end_date":   "2024-01-10",
		"price":      10000,
	}, nil)
	expectStatus(t, rec, http.StatusCreated)
	saved := decode[struct {
		PriceTag struct {
			ID string `json:"id"`
		} `json:"price_tag"`
		Created int `json:"created"`
	}](t, rec)
	if saved.Created != 10 {
		t.Fatalf("expected 10 day rates, got %d", saved.Created)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/listings/loft/price-tags", map[string]any{
		"start_date": "2024-01-05",
		"end_date":   "2024-01-15",
		"price":      9000,
	}, nil)
	expectStatus(t, rec, http.StatusConflict)
	body := decode[errorBody](t, rec)
	if len(body.Dates) != 6 || body.Dates[0] != "2024-01-05" || body.Dates[5] != "2024-01-10" {
		t.Fatalf("unexpected conflicting dates %v", body.Dates)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/listings/loft/day-rates?from=2024-01-11&to=2024-01-15", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if rates := decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, rec); len(rates.Items) != 0 {
		t.Fatalf("rejected tag left %d rates behind", len(rates.Items))
	}

	rec = api.do(t, http.MethodGet, "/api/v1/listings/loft/price-tags", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if tags := decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, rec); len(tags.Items) != 1 {
		t.Fatalf("expected one stored tag, got %d", len(tags.Items))
	}

	rec = api.do(t, http.MethodGet, "/api/v1/listings/loft/quote?check_in=2024-01-09&check_out=2024-01-12", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	quote := decode[struct {
		Nights int `json:"nights"`
		Total  struct {
			Amount int64 `json:"amount"`
		} `json:"total"`
		UnpricedNights []string `json:"unpriced_nights"`
	}](t, rec)
	if quote.Nights != 3 || quote.Total.Amount != 20000 || len(quote.UnpricedNights) != 1 {
		t.Fatalf("unexpected quote %+v", quote)
	}

	expectStatus(t, api.do(t, http.MethodDelete, "/api/v1/listings/loft/price-tags/"+saved.PriceTag.ID, nil, nil), http.StatusNoContent)
	rec = api.do(t, http.MethodGet, "/api/v1/listings/loft/day-rates?from=2024-01-01&to=2024-01-10", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if rates := decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, rec); len(rates.Items) != 0 {
		t.Fatalf("deleted tag left %d rates behind", len(rates.Items))
	}
}

func TestNegativePriceTagLeavesNoRates(t *testing.T) {
	api := newTestAPI(t)
	createListing(t, api, "Loft")

	rec := api.do(t, http.MethodPost, "/api/v1/listings/loft/price-tags", map[string]any{
		"start_date": "2024-05-01",
		"end_date":   "2024-05-03",
		"price":      -1,
	}, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rec); body.Fields["price"] == "" {
		t.Fatalf("expected a price error, got %+v", body)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/listings/loft/day-rates?from=2024-05-01&to=2024-05-03", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if rates := decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, rec); len(rates.Items) != 0 {
		t.Fatalf("rejected tag left %d rates behind", len(rates.Items))
	}
	rec = api.do(t, http.MethodGet, "/api/v1/listings/loft/price-tags", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if tags := decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, rec); len(tags.Items) != 0 {
		t.Fatalf("rejected tag was stored: %d", len(tags.Items))
	}
}

type reservationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Nights int    `json:"nights"`
}

func TestReservationFlow(t *testing.T) {
	api := newTestAPI(t)
	createListing(t, api, "Loft")
	stay := map[string]any{"check_in": "2030-03-01", "check_out": "2030-03-04"}

	rec := api.do(t, http.MethodPost, "/api/v1/listings/loft/reservations", stay, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decode[errorBody](t, rec); body.Fields["user_id"] == "" {
		t.Fatalf("expected a user_id error, got %+v", body)
	}

	headers := map[string]string{"X-User-ID": "guest-1", "Idempotency-Key": "req-1"}
	rec = api.do(t, http.MethodPost, "/api/v1/listings/loft/reservations", stay, headers)
	expectStatus(t, rec, http.StatusCreated)
	first := decode[reservationResponse](t, rec)
	if first.Status != "NEW" || first.Nights != 3 {
		t.Fatalf("unexpected reservation %+v", first)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/listings/loft/reservations", stay, headers)
	expectStatus(t, rec, http.StatusCreated)
	if replay := decode[reservationResponse](t, rec); replay.ID != first.ID {
		t.Fatalf("retry created a second reservation: %s vs %s", replay.ID, first.ID)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/listings/loft/reservations", map[string]any{
		"check_in":  "2030-03-03",
		"check_out": "2030-03-06",
	}, map[string]string{"X-User-ID": "guest-2"})
	expectStatus(t, rec, http.StatusConflict)

	rec = api.do(t, http.MethodPost, "/api/v1/reservations/"+first.ID+"/submit", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	rec = api.do(t, http.MethodPost, "/api/v1/reservations/"+first.ID+"/approve", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[reservationResponse](t, rec); got.Status != "APPROVED" {
		t.Fatalf("expected APPROVED, got %s", got.Status)
	}
	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/reservations/"+first.ID+"/approve", nil, nil), http.StatusConflict)
	expectStatus(t, api.do(t, http.MethodPost, "/api/v1/reservations/missing/cancel", nil, nil), http.StatusNotFound)

	rec = api.do(t, http.MethodGet, "/api/v1/listings/loft/reservations", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[struct {
		Items []reservationResponse `json:"items"`
	}](t, rec); len(list.Items) != 1 {
		t.Fatalf("expected one reservation, got %d", len(list.Items))
	}
}

func TestConcurrentBookingsOfSameDatesAdmitOne(t *testing.T) {
	api := newTestAPI(t)
	createListing(t, api, "Loft")

	const guests = 6
	statuses := make(chan int, guests)
	var wg sync.WaitGroup
	for i := range guests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := api.do(t, http.MethodPost, "/api/v1/listings/loft/reservations", map[string]any{
				"check_in":  "2030-04-01",
				"check_out": "2030-04-03",
			}, map[string]string{"X-User-ID": fmt.Sprintf("guest-%d", i)})
			statuses <- rec.Code
		}()
	}
	wg.Wait()
	close(statuses)

	created := 0
	for code := range statuses {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one booking, got %d", created)
	}
}

func TestAvailabilityCalendar(t *testing.T) {
	api := newTestAPI(t)
	createListing(t, api, "Loft")
	rec := api.do(t, http.MethodPost, "/api/v1/listings/loft/reservations", map[string]any{
		"check_in":  "2030-03-10",
		"check_out": "2030-03-12",
	}, map[string]string{"X-User-ID": "guest-1"})
	expectStatus(t, rec, http.StatusCreated)

	rec = api.do(t, http.MethodGet, "/api/v1/listings/loft/availability?month=203003&months=1", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	cal := decode[struct {
		Months []struct {
			Month string `json:"month"`
			Days  []struct {
				Date      string `json:"date"`
				Available bool   `json:"available"`
			} `json:"days"`
		} `json:"months"`
	}](t, rec)
	if len(cal.Months) != 1 || len(cal.Months[0].Days) != 31 {
		t.Fatalf("expected March 2030 only, got %+v", cal.Months)
	}
	for _, d := range cal.Months[0].Days {
		booked := d.Date == "2030-03-10" || d.Date == "2030-03-11"
		if d.Available == booked {
			t.Fatalf("day %s available=%v", d.Date, d.Available)
		}
	}

	expectStatus(t, api.do(t, http.MethodGet, "/api/v1/listings/loft/availability?month=203003&months=13", nil, nil), http.StatusUnprocessableEntity)
}

func TestAvailabilityReflectsReservationImmediately(t *testing.T) {
	api := newTestAPI(t)
	createListing(t, api, "Loft")

	available := func() map[string]bool {
		t.Helper()
		rec := api.do(t, http.MethodGet, "/api/v1/listings/loft/availability?month=203002&months=1", nil, nil)
		expectStatus(t, rec, http.StatusOK)
		cal := decode[struct {
			Months []struct {
				Days []struct {
					Date      string `json:"date"`
					Available bool   `json:"available"`
				} `json:"days"`
			} `json:"months"`
		}](t, rec)
		days := make(map[string]bool)
		for _, m := range cal.Months {
			for _, d := range m.Days {
				days[d.Date] = d.Available
			}
		}
		return days
	}

	if days := available(); !days["2030-02-01"] {
		t.Fatalf("expected 2030-02-01 free before booking, got %v", days)
	}
	rec := api.do(t, http.MethodPost, "/api/v1/listings/loft/reservations", map[string]any{
		"check_in":  "2030-02-01",
		"check_out": "2030-02-05",
	}, map[string]string{"X-User-ID": "guest-1"})
	expectStatus(t, rec, http.StatusCreated)

	days := available()
	for _, d := range []string{"2030-02-01", "2030-02-02", "2030-02-03", "2030-02-04"} {
		if days[d] {
			t.Fatalf("%s still reported available after booking", d)
		}
	}
	if !days["2030-02-05"] {
		t.Fatal("check-out day should stay available")
	}
}

func TestPhotoUpload(t *testing.T) {
	api := newTestAPI(t)
	createListing(t, api, "Loft")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("title", "Living room")
	_ = form.WriteField("is_cover", "true")
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="room.png"`)
	header.Set("Content-Type", "image/png")
	part, err := form.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG fake image"))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/loft/photos", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusCreated)

	rec = api.do(t, http.MethodGet, "/api/v1/listings/loft/photos", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	photos := decode[struct {
		Items []struct {
			Title   string `json:"title"`
			IsCover bool   `json:"is_cover"`
		} `json:"items"`
	}](t, rec)
	if len(photos.Items) != 1 || photos.Items[0].Title != "Living room" || !photos.Items[0].IsCover {
		t.Fatalf("unexpected photos %+v", photos.Items)
	}
	if keys := api.photos.Keys(); len(keys) != 1 || !strings.HasSuffix(keys[0], ".png") {
		t.Fatalf("unexpected stored objects %v", keys)
	}
}

func TestPhotoUploadSniffsGenericParts(t *testing.T) {
	api := newTestAPI(t)
	createListing(t, api, "Loft")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("title", "Notes")
	part, err := form.CreateFormFile("file", "notes.bin")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte("plain text, not an image"))
	_ = form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/loft/photos", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnsupportedMediaType)
	if len(api.photos.Keys()) != 0 {
		t.Fatal("rejected upload must not be stored")
	}
}

func TestReferencesAndAdminEntities(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/v1/references", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	catalog := decode[domainreferences.Catalog](t, rec)
	if len(catalog.ObjectTypes) != len(domainreferences.Defaults().ObjectTypes) {
		t.Fatalf("unexpected catalog %+v", catalog)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/admin/entities", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	list := decode[struct {
		Items []json.RawMessage `json:"items"`
	}](t, rec)
	if len(list.Items) == 0 {
		t.Fatal("expected registered admin entities")
	}
}

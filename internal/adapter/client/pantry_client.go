package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rl1809/pantry/internal/core/domain"
	"github.com/rl1809/pantry/internal/port"
)

// Client talks to the pantry backend REST API. It holds no credentials of
// its own; WithSession returns a copy bound to one caller.
type Client struct {
	baseURL string
	http    *http.Client
	session domain.Session
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) WithHTTPClient(h *http.Client) *Client {
	cp := *c
	cp.http = h
	return &cp
}

func (c *Client) WithSession(s domain.Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

func (c *Client) Session() domain.Session {
	return c.session
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DraftItem is an unconfirmed item, typically produced by image detection.
type DraftItem struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	Name            string       `json:"name"`
	Quantity        *float64     `json:"quantity"`
	Unit            *domain.Unit `json:"unit"`
	ExpirationDate  *domain.Date `json:"expiration_date"`
	Category        *string      `json:"category"`
	Location        *string      `json:"location"`
	Notes           *string      `json:"notes"`
	Source          *string      `json:"source"`
	ConfidenceScore *float64     `json:"confidence_score"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type DraftItemCreate struct {
	Name            string       `json:"name"`
	Quantity        *float64     `json:"quantity,omitempty"`
	Unit            *domain.Unit `json:"unit,omitempty"`
	ExpirationDate  *domain.Date `json:"expiration_date,omitempty"`
	Category        *string      `json:"category,omitempty"`
	Location        *string      `json:"location,omitempty"`
	Notes           *string      `json:"notes,omitempty"`
	Source          *string      `json:"source,omitempty"`
	ConfidenceScore *float64     `json:"confidence_score,omitempty"`
}

type apiError struct {
	Detail json.RawMessage `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, p string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(method, p, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, p, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, p string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, method, p, body, "application/json", out)
}

func statusError(method, p string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := strings.TrimSpace(string(raw))
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil && len(ae.Detail) > 0 {
		var s string
		if json.Unmarshal(ae.Detail, &s) == nil {
			detail = s
		} else {
			detail = string(ae.Detail)
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %s: %w", method, p, detail, domain.ErrNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &domain.ValidationError{Reason: detail}
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %s: %w", method, p, detail, domain.ErrUnauthenticated)
	}
	return fmt.Errorf("%s %s: unexpected status %d: %s", method, p, resp.StatusCode, detail)
}

func (c *Client) Register(ctx context.Context, creds Credentials) (*Client, error) {
	return c.authenticate(ctx, "/auth/register", creds)
}

// Login returns a copy of c bound to the new session token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Client, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

func (c *Client) authenticate(ctx context.Context, p string, creds Credentials) (*Client, error) {
	var tok Token
	if err := c.WithSession(domain.Session{}).doJSON(ctx, http.MethodPost, p, creds, &tok); err != nil {
		return nil, err
	}
	authed := c.WithSession(domain.Session{Token: tok.AccessToken})
	user, err := authed.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return authed.WithSession(domain.Session{UserID: user.ID, Token: tok.AccessToken}), nil
}

func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var u User
	err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &u)
	return u, err
}

func (c *Client) ListDrafts(ctx context.Context) ([]DraftItem, error) {
	var drafts []DraftItem
	err := c.doJSON(ctx, http.MethodGet, "/api/draft-items", nil, &drafts)
	return drafts, err
}

func (c *Client) CreateDraft(ctx context.Context, d DraftItemCreate) (DraftItem, error) {
	var draft DraftItem
	err := c.doJSON(ctx, http.MethodPost, "/api/draft-items", d, &draft)
	return draft, err
}

func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/draft-items/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ConfirmDraft(ctx context.Context, draftID string, rec domain.NewRecord) (domain.InventoryRecord, error) {
	var out domain.InventoryRecord
	if err := c.doJSON(ctx, http.MethodPost, "/api/draft-items/"+url.PathEscape(draftID)+"/confirm", toWire(rec), &out); err != nil {
		return out, err
	}
	return canonical(out), nil
}

// IngestImage uploads a photo and returns the draft items detected in it.
func (c *Client) IngestImage(ctx context.Context, filename string, image io.Reader, storageLocation string) ([]DraftItem, error) {
	if storageLocation == "" {
		storageLocation = "fridge"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, path.Base(filename)))
	h.Set("Content-Type", imageContentType(filename))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := mw.WriteField("storage_location", storageLocation); err != nil {
		return nil, fmt.Errorf("write storage location: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var drafts []DraftItem
	err = c.do(ctx, http.MethodPost, "/api/ingest/image", &buf, mw.FormDataContentType(), &drafts)
	return drafts, err
}

func imageContentType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		return "image/jpeg"
	}
	return "image/" + ext
}

// wireRecord matches the backend's lowercase category and unit convention.
type wireRecord struct {
	Name            string      `json:"name"`
	Category        string      `json:"category"`
	Quantity        float64     `json:"quantity"`
	Unit            string      `json:"unit"`
	StorageLocation string      `json:"storage_location"`
	ExpiryDate      domain.Date `json:"expiry_date"`
}

func toWire(rec domain.NewRecord) wireRecord {
	return wireRecord{
		Name:            rec.Name,
		Category:        strings.ToLower(string(rec.Category)),
		Quantity:        rec.Quantity,
		Unit:            strings.ToLower(string(rec.Unit)),
		StorageLocation: rec.StorageLocation,
		ExpiryDate:      rec.ExpiryDate,
	}
}

// canonical restores the display spelling of category and unit. Categories
// the backend knows but this build does not are kept as sent.
func canonical(r domain.InventoryRecord) domain.InventoryRecord {
	if c, err := domain.ParseCategory(string(r.Category)); err == nil {
		r.Category = c
	}
	r.Unit = domain.ParseUnit(string(r.Unit))
	return r
}

type wirePatch struct {
	Name            *string      `json:"name,omitempty"`
	Category        *string      `json:"category,omitempty"`
	Quantity        *float64     `json:"quantity,omitempty"`
	Unit            *string      `json:"unit,omitempty"`
	StorageLocation *string      `json:"storage_location,omitempty"`
	ExpiryDate      *domain.Date `json:"expiry_date,omitempty"`
}

func lower[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := strings.ToLower(string(*v))
	return &s
}

func (c *Client) List(ctx context.Context) ([]domain.InventoryRecord, error) {
	var records []domain.InventoryRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/inventory", nil, &records); err != nil {
		return nil, err
	}
	for i := range records {
		records[i] = canonical(records[i])
	}
	return records, nil
}

func (c *Client) Update(ctx context.Context, id string, patch domain.RecordPatch) (domain.InventoryRecord, error) {
	if err := patch.Validate(); err != nil {
		return domain.InventoryRecord{}, err
	}
	wp := wirePatch{
		Name:            patch.Name,
		Category:        lower(patch.Category),
		Quantity:        patch.Quantity,
		Unit:            lower(patch.Unit),
		StorageLocation: patch.StorageLocation,
		ExpiryDate:      patch.ExpiryDate,
	}
	var out domain.InventoryRecord
	if err := c.doJSON(ctx, http.MethodPut, "/api/inventory/"+url.PathEscape(id), wp, &out); err != nil {
		return out, err
	}
	return canonical(out), nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/inventory/"+url.PathEscape(id), nil, nil)
}

// Create adds an item the way the backend expects: a manual draft that is
// confirmed straight away.
func (c *Client) Create(ctx context.Context, rec domain.NewRecord) (domain.InventoryRecord, error) {
	rec, err := rec.Normalize()
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	w := toWire(rec)
	source := "manual"
	unit := domain.Unit(w.Unit)
	draft, err := c.CreateDraft(ctx, DraftItemCreate{
		Name:           w.Name,
		Quantity:       &w.Quantity,
		Unit:           &unit,
		ExpirationDate: &w.ExpiryDate,
		Category:       &w.Category,
		Location:       &w.StorageLocation,
		Source:         &source,
	})
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("create draft: %w", err)
	}
	return c.ConfirmDraft(ctx, draft.ID, rec)
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health: status %d", resp.StatusCode)
	}
	return nil
}

// Provider binds the client to each caller's session.
type Provider struct {
	client *Client
}

func NewProvider(c *Client) *Provider {
	return &Provider{client: c}
}

func (p *Provider) StoreFor(session domain.Session) (port.InventoryStore, error) {
	if session.Token == "" {
		return nil, domain.ErrUnauthenticated
	}
	return p.client.WithSession(session), nil
}

func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Package listing turns list controls into bill listing requests. Only the
// response to the most recently issued request is ever applied.
package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// DefaultDebounce is the quiescence window for search input
const DefaultDebounce = 500 * time.Millisecond

// ErrListFailed wraps collaborator failures shown on the view
var ErrListFailed = errors.New("failed to load bills")

// Scheduler runs fn once after d. The returned stop function cancels it.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// View is what the display layer renders
type View struct {
	Rows       []*entity.Bill
	Query      entity.ListingQuery
	Page       int
	TotalPages int
	Total      int
	Loading    bool
	Err        error
}

// Option configures a Controller
type Option func(*Controller)

// WithDebounce sets the search quiescence window
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithScheduler replaces the timer used for debouncing
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.scheduler = s }
}

// WithLogger sets a logger
func WithLogger(l Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithOnChange registers a callback invoked after every applied view update
func WithOnChange(fn func(View)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithQuery sets the initial query
func WithQuery(q entity.ListingQuery) Option {
	return func(c *Controller) { c.query = q }
}

// Controller owns the listing query of one principal
type Controller struct {
	principal entity.Principal
	lister    port.BillLister
	debounce  time.Duration
	scheduler Scheduler
	logger    Logger
	onChange  func(View)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	query         entity.ListingQuery
	issued        uint64
	view          View
	pendingSearch *string
	searchSeq     uint64
	stopPending   func() bool
	closed        bool
}

// NewController creates a controller. Nothing is requested until Refresh.
func NewController(principal entity.Principal, lister port.BillLister, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		principal: principal,
		lister:    lister,
		debounce:  DefaultDebounce,
		scheduler: timerScheduler{},
		query:     entity.DefaultListingQuery(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.view = View{Rows: []*entity.Bill{}, Query: c.query, Page: c.query.Page}
	return c
}

// View returns the current view
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.view
	v.Rows = append([]*entity.Bill(nil), c.view.Rows...)
	return v
}

// Query returns the query the next immediate request would use
func (c *Controller) Query() entity.ListingQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Refresh re-issues the current query
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issueLocked()
}

// SetPage moves to page p immediately
func (c *Controller) SetPage(p int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p < 1 {
		p = 1
	}
	c.query.Page = p
	c.issueLocked()
}

// SetPageSize changes the page size and returns to the first page
func (c *Controller) SetPageSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 {
		n = entity.DefaultPageSize
	}
	if n > entity.MaxPageSize {
		n = entity.MaxPageSize
	}
	c.query.PageSize = n
	c.query.Page = 1
	c.issueLocked()
}

// ToggleSort applies a sort-column click immediately
func (c *Controller) ToggleSort(field entity.SortField) error {
	if !field.IsValid() {
		return fmt.Errorf("%w: %q", entity.ErrInvalidSort, field)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = c.query.ToggleSort(field)
	c.issueLocked()
	return nil
}

// SetSearch records search text. The request is issued once no further
// search change arrives within the debounce window, with the page reset to 1.
func (c *Controller) SetSearch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.stopPending != nil {
		c.stopPending()
	}
	c.pendingSearch = &text
	c.searchSeq++
	seq := c.searchSeq
	c.stopPending = c.scheduler.AfterFunc(c.debounce, func() { c.flushSearch(seq) })
}

// flushSearch issues the pending search if seq is still the latest change.
// A timer that fired while a newer SetSearch held the lock is ignored.
func (c *Controller) flushSearch(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.searchSeq || c.pendingSearch == nil || c.closed {
		return
	}
	c.query.Search = *c.pendingSearch
	c.query.Page = 1
	c.pendingSearch = nil
	c.stopPending = nil
	c.issueLocked()
}

// Wait blocks until every issued request has returned
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels the pending search and in-flight requests
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.stopPending != nil {
		c.stopPending()
		c.stopPending = nil
	}
	c.pendingSearch = nil
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Controller) issueLocked() {
	if c.closed {
		return
	}
	c.issued++
	seq := c.issued
	q := c.query
	c.view.Loading = true

	c.wg.Add(1)
	go c.fetch(seq, q)
}

func (c *Controller) fetch(seq uint64, q entity.ListingQuery) {
	defer c.wg.Done()

	page, err := c.lister.List(c.ctx, port.ListRequest{UserID: c.principal.UserID, Query: q})

	c.mu.Lock()
	if seq != c.issued {
		c.mu.Unlock()
		if c.logger != nil {
			c.logger.Info("Discarding stale listing response", "seq", seq, "latest", c.issued)
		}
		return
	}

	c.view.Loading = false
	if err != nil {
		c.view.Err = classify(err)
		if c.logger != nil {
			c.logger.Error("Listing request failed", "seq", seq, "error", err)
		}
	} else {
		if page == nil {
			page = &entity.BillPage{Pagination: entity.NewPagination(q.Page, q.PageSize, 0)}
		}
		rows := page.Data
		if rows == nil {
			rows = []*entity.Bill{}
		}
		c.view = View{
			Rows:       rows,
			Query:      q,
			Page:       page.Pagination.Page,
			TotalPages: page.Pagination.TotalPages,
			Total:      page.Pagination.Total,
		}
	}
	v := c.view
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(v)
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, entity.ErrUnauthorized), errors.Is(err, entity.ErrInvalidSort):
		return err
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrListFailed, err)
	}
}

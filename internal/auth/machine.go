package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderscraper/internal/assert"
	"orderscraper/internal/components/chrono"
	"orderscraper/internal/components/telemetry"
	"orderscraper/internal/session"
	"orderscraper/lib/browser"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("orderscraper/internal/auth")

const (
	report_machine_invalidate = "machine.invalidate"
	report_machine_load       = "machine.load"
	report_machine_restore    = "machine.restore"
	report_machine_location   = "machine.location"
	report_machine_persist    = "machine.persist"
	report_machine_input      = "machine.input"
)

type Selectors struct {
	// Landmark only renders for an authenticated user (ex. the account menu).
	Landmark           string `json:"landmark"`
	LoginButton        string `json:"login_button"`
	PhoneInput         string `json:"phone_input"`
	ContinueButton     string `json:"continue_button"`
	OTPScreen          string `json:"otp_screen"`
	OTPInput           string `json:"otp_input"`
	OTPError           string `json:"otp_error"`
	LocationInput      string `json:"location_input"`
	LocationSuggestion string `json:"location_suggestion"`
}

type Timeouts struct {
	Restore     time.Duration
	LoginButton time.Duration
	OTPScreen   time.Duration
	Login       time.Duration
	Location    time.Duration
	// Poll is the granularity used when waiting on more than one selector.
	Poll time.Duration
}

type Options struct {
	BaseURL string
	// Location is typed into the storefront's location prompt, empty skips the prompt.
	Location     string
	ForceRelogin bool
	Selectors    Selectors
	Timeouts     Timeouts
}

// Result describes how the machine reached Authenticated.
type Result struct {
	Restored bool
	// SessionPersisted is false when a fresh login could not be saved, the
	// next run will have to log in again.
	SessionPersisted bool
}

// Machine drives the browsing context from anonymous to authenticated.
// A Machine is single use.
type Machine struct {
	page     browser.Page
	store    session.Store
	prompter Prompter
	clock    chrono.API
	tel      telemetry.API
	opts     Options

	state   State
	history []State
	phone   string
}

func NewMachine(
	page browser.Page,
	store session.Store,
	prompter Prompter,
	clock chrono.API,
	tel telemetry.API,
	opts Options,
) *Machine {
	assert.NotNil(page, "page")
	assert.NotNil(store, "store")
	assert.NotNil(prompter, "prompter")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")
	assert.NotEmptyStr(opts.BaseURL, "base url")
	assert.NotEmptyStr(opts.Selectors.Landmark, "landmark selector")

	return &Machine{
		page:     page,
		store:    store,
		prompter: prompter,
		clock:    clock,
		tel:      telemetry.NewScopedAPI("auth", tel),
		opts:     opts,
		state:    Anonymous,
	}
}

func (m *Machine) State() State {
	return m.state
}

// History returns every state the machine has been in, in order.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

func (m *Machine) enter(ctx context.Context, state State) {
	m.state = state
	m.history = append(m.history, state)
	trace.SpanFromContext(ctx).AddEvent("state", trace.WithAttributes(
		attribute.String("state", state.String()),
	))
	m.tel.ReportDebug("enter state", state.String())
}

func (m *Machine) fail(ctx context.Context, reason string, err error) error {
	m.enter(ctx, Failed)
	failure := &FailedError{Reason: reason, Err: err}
	span := trace.SpanFromContext(ctx)
	span.RecordError(failure)
	span.SetStatus(codes.Error, reason)
	return failure
}

// Run drives the machine until it is Authenticated or Failed. A *FailedError is
// returned for Failed, other errors come from the context being cancelled.
func (m *Machine) Run(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "Machine.Run")
	defer span.End()

	if len(m.history) > 0 {
		return Result{}, fmt.Errorf("auth machine already ran, ended in %s", m.state)
	}

	var result Result
	bundle, hasBundle := m.initialBundle(ctx)
	if hasBundle {
		m.enter(ctx, RestoringSession)
	} else {
		m.enter(ctx, Anonymous)
	}

	for !m.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var err error
		switch m.state {
		case RestoringSession:
			if m.restore(ctx, bundle) {
				result.Restored = true
				result.SessionPersisted = true
				m.enter(ctx, Authenticated)
			} else {
				m.enter(ctx, Anonymous)
			}
		case Anonymous:
			err = m.openLogin(ctx)
			if err == nil {
				m.enter(ctx, AwaitingPhone)
			}
		case AwaitingPhone:
			err = m.submitPhone(ctx)
			if err == nil {
				m.enter(ctx, AwaitingOTP)
			}
		case AwaitingOTP:
			result.SessionPersisted, err = m.submitOTP(ctx)
			if err == nil {
				m.enter(ctx, Authenticated)
			}
		}
		if err != nil {
			return result, err
		}
	}

	span.SetAttributes(attribute.Bool("restored", result.Restored))
	return result, nil
}

func (m *Machine) initialBundle(ctx context.Context) (session.Bundle, bool) {
	if m.opts.ForceRelogin {
		err := m.store.Invalidate(ctx)
		if err != nil {
			m.tel.ReportBroken(report_machine_invalidate, err)
		}
		return session.Bundle{}, false
	}

	bundle, err := m.store.Load(ctx)
	if errors.Is(err, session.ErrNoBundle) {
		return session.Bundle{}, false
	}
	if err != nil {
		m.tel.ReportWarning(report_machine_load, err)
		return session.Bundle{}, false
	}
	return bundle, true
}

// restore applies the bundle and checks whether the authenticated landmark renders.
// A stale bundle is left in the store, a successful login later replaces it.
func (m *Machine) restore(ctx context.Context, bundle session.Bundle) bool {
	ctx, span := tracer.Start(ctx, "Machine.restore")
	defer span.End()

	origin := bundle.Origin
	if origin == "" {
		origin = m.opts.BaseURL
	}

	err := m.page.Navigate(ctx, origin)
	if err != nil {
		m.tel.ReportWarning(report_machine_restore, fmt.Errorf("navigate: %w", err))
		return false
	}
	err = bundle.Apply(ctx, m.page)
	if err != nil {
		m.tel.ReportWarning(report_machine_restore, fmt.Errorf("apply bundle: %w", err))
		return false
	}
	// reload so the storefront picks up the restored state
	err = m.page.Navigate(ctx, m.opts.BaseURL)
	if err != nil {
		m.tel.ReportWarning(report_machine_restore, fmt.Errorf("reload: %w", err))
		return false
	}

	err = m.page.WaitFor(ctx, m.opts.Selectors.Landmark, m.opts.Timeouts.Restore)
	if err != nil {
		m.tel.ReportWarning(
			report_machine_restore,
			fmt.Errorf("stored session is stale: %w", err),
			bundle.ID.String(),
			bundle.IssuedAt,
		)
		span.SetStatus(codes.Error, "landmark did not render")
		return false
	}
	return true
}

func (m *Machine) dismissLocationPrompt(ctx context.Context) {
	sel := m.opts.Selectors
	if m.opts.Location == "" || sel.LocationInput == "" {
		return
	}

	err := m.page.WaitFor(ctx, sel.LocationInput, m.opts.Timeouts.Location)
	if err != nil {
		m.tel.ReportDebug("location prompt not found, continuing")
		return
	}
	err = m.page.Type(ctx, sel.LocationInput, m.opts.Location)
	if err != nil {
		m.tel.ReportWarning(report_machine_location, fmt.Errorf("type location: %w", err))
		return
	}
	if sel.LocationSuggestion == "" {
		return
	}
	err = m.page.WaitFor(ctx, sel.LocationSuggestion, m.opts.Timeouts.Location)
	if err != nil {
		m.tel.ReportWarning(report_machine_location, fmt.Errorf("no location suggestion: %w", err))
		return
	}
	err = m.page.Click(ctx, sel.LocationSuggestion)
	if err != nil {
		m.tel.ReportWarning(report_machine_location, fmt.Errorf("pick location: %w", err))
	}
}

func (m *Machine) openLogin(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Machine.openLogin")
	defer span.End()

	sel := m.opts.Selectors
	err := m.page.Navigate(ctx, m.opts.BaseURL)
	if err != nil {
		return m.fail(ctx, ReasonLoginUI, err)
	}
	m.dismissLocationPrompt(ctx)

	err = m.page.WaitFor(ctx, sel.LoginButton, m.opts.Timeouts.LoginButton)
	if err != nil {
		return m.fail(ctx, ReasonLoginUI, err)
	}
	err = m.page.Click(ctx, sel.LoginButton)
	if err != nil {
		return m.fail(ctx, ReasonLoginUI, err)
	}
	err = m.page.WaitFor(ctx, sel.PhoneInput, m.opts.Timeouts.LoginButton)
	if err != nil {
		return m.fail(ctx, ReasonLoginUI, err)
	}
	return nil
}

// askPhone keeps asking until a well formed phone number is given.
func (m *Machine) askPhone(ctx context.Context) (string, error) {
	problem := ""
	for {
		phone, err := m.prompter.Phone(ctx, problem)
		if err != nil {
			return "", err
		}
		err = ValidatePhone(phone)
		if err == nil {
			return phone, nil
		}
		m.tel.ReportDebug("rejected phone input", err.Error())
		problem = err.Error()
	}
}

func (m *Machine) askOTP(ctx context.Context) (string, error) {
	problem := ""
	for {
		otp, err := m.prompter.OTP(ctx, problem)
		if err != nil {
			return "", err
		}
		err = ValidateOTP(otp)
		if err == nil {
			return otp, nil
		}
		m.tel.ReportDebug("rejected otp input", err.Error())
		problem = err.Error()
	}
}

func (m *Machine) inputError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.tel.ReportWarning(report_machine_input, err)
	return m.fail(ctx, ReasonInput, err)
}

func (m *Machine) submitPhone(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Machine.submitPhone")
	defer span.End()

	if m.phone == "" {
		phone, err := m.askPhone(ctx)
		if err != nil {
			return m.inputError(ctx, err)
		}
		m.phone = phone
	}

	sel := m.opts.Selectors
	err := m.page.Type(ctx, sel.PhoneInput, m.phone)
	if err != nil {
		return m.fail(ctx, ReasonLoginUI, err)
	}
	if sel.ContinueButton != "" {
		err = m.page.Click(ctx, sel.ContinueButton)
		if err != nil {
			return m.fail(ctx, ReasonLoginUI, err)
		}
	}

	err = m.page.WaitFor(ctx, sel.OTPScreen, m.opts.Timeouts.OTPScreen)
	if err != nil {
		return m.fail(ctx, ReasonOTPScreen, err)
	}
	return nil
}

// submitOTP returns whether the new session could be persisted.
func (m *Machine) submitOTP(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "Machine.submitOTP")
	defer span.End()

	otp, err := m.askOTP(ctx)
	if err != nil {
		return false, m.inputError(ctx, err)
	}

	sel := m.opts.Selectors
	err = m.page.Type(ctx, sel.OTPInput, otp)
	if err != nil {
		return false, m.fail(ctx, ReasonLoginUI, err)
	}

	outcomes := []string{sel.Landmark}
	if sel.OTPError != "" {
		outcomes = append(outcomes, sel.OTPError)
	}
	idx, err := browser.WaitAny(ctx, m.page, m.opts.Timeouts.Login, m.opts.Timeouts.Poll, outcomes...)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, m.fail(ctx, ReasonLoginIncomplete, err)
	}
	if idx == 1 {
		return false, m.fail(ctx, ReasonOTPRejected, nil)
	}

	return m.persist(ctx), nil
}

func (m *Machine) persist(ctx context.Context) bool {
	bundle, err := session.Capture(ctx, m.page, m.opts.BaseURL, m.clock.Now())
	if err != nil {
		m.tel.ReportBroken(report_machine_persist, fmt.Errorf("capture: %w", err))
		return false
	}
	err = m.store.Save(ctx, bundle)
	if err != nil {
		m.tel.ReportBroken(report_machine_persist, fmt.Errorf("save: %w", err))
		return false
	}
	return true
}

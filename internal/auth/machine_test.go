package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"orderscraper/internal/components/chrono"
	"orderscraper/internal/components/telemetry"
	"orderscraper/internal/session"
	"orderscraper/lib/browser"
	"orderscraper/lib/browser/browsertest"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://blinkit.test"

var testSelectors = Selectors{
	Landmark:           "#account",
	LoginButton:        "#login",
	PhoneInput:         "#phone",
	ContinueButton:     "#continue",
	OTPScreen:          "#otp-screen",
	OTPInput:           "#otp",
	OTPError:           "#otp-error",
	LocationInput:      "#location",
	LocationSuggestion: "#location-suggestion",
}

func testOptions() Options {
	return Options{
		BaseURL:   baseURL,
		Selectors: testSelectors,
		Timeouts: Timeouts{
			Restore:     time.Millisecond,
			LoginButton: time.Millisecond,
			OTPScreen:   time.Millisecond,
			Login:       20 * time.Millisecond,
			Location:    time.Millisecond,
			Poll:        time.Millisecond,
		},
	}
}

var testClock = chrono.FixedImpl{At: time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC)}

// loginSite scripts a storefront where the login form works and the given otp is accepted.
func loginSite(acceptOTP string) *browsertest.Page {
	page := browsertest.NewPage()
	page.Show(testSelectors.LoginButton)
	page.OnClick[testSelectors.LoginButton] = func(p *browsertest.Page) {
		p.Show(testSelectors.PhoneInput, testSelectors.ContinueButton)
	}
	page.OnClick[testSelectors.ContinueButton] = func(p *browsertest.Page) {
		if ValidatePhone(p.Typed(testSelectors.PhoneInput)) == nil {
			p.Show(testSelectors.OTPScreen, testSelectors.OTPInput)
		}
	}
	page.OnType = func(p *browsertest.Page, selector, text string) {
		if selector != testSelectors.OTPInput {
			return
		}
		if text == acceptOTP {
			p.Show(testSelectors.Landmark)
			return
		}
		p.Show(testSelectors.OTPError)
	}
	return page
}

func TestMachineRestoresValidSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewMockStore(ctrl)
	prompter := NewMockPrompter(ctrl)

	bundle := session.NewBundle(
		testClock.At.Add(-time.Hour),
		baseURL,
		[]browser.Cookie{{Name: "token", Value: "abc"}},
		map[string]string{"auth": "1"},
	)
	store.EXPECT().Load(gomock.Any()).Return(bundle, nil)

	page := browsertest.NewPage()
	page.OnNavigate = func(p *browsertest.Page, url string) {
		cookies, _ := p.Cookies(context.Background())
		if len(cookies) > 0 {
			p.Show(testSelectors.Landmark)
		}
	}

	tel := &telemetry.Recorder{}
	machine := NewMachine(page, store, prompter, testClock, tel, testOptions())
	result, err := machine.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Restored)
	require.True(t, result.SessionPersisted)
	require.Equal(t, Authenticated, machine.State())

	diff := cmp.Diff([]State{RestoringSession, Authenticated}, machine.History())
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, 1, page.CountCalls("set-cookies:"))
	require.Equal(t, 1, page.CountCalls("set-storage:"))
	require.Zero(t, page.CountCalls("type:"))
}

func TestMachineStaleSessionFallsBackToLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewMockStore(ctrl)
	prompter := NewMockPrompter(ctrl)

	stale := session.NewBundle(testClock.At.Add(-30*24*time.Hour), baseURL, nil, nil)
	store.EXPECT().Load(gomock.Any()).Return(stale, nil)
	prompter.EXPECT().Phone(gomock.Any(), "").Return("9876543210", nil).Times(1)
	prompter.EXPECT().OTP(gomock.Any(), "").Return("1234", nil).Times(1)

	var saved session.Bundle
	store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, b session.Bundle) error {
		saved = b
		return nil
	})

	page := loginSite("1234")
	tel := &telemetry.Recorder{}
	machine := NewMachine(page, store, prompter, testClock, tel, testOptions())
	result, err := machine.Run(context.Background())
	require.NoError(t, err)
	require.False(t, result.Restored)
	require.True(t, result.SessionPersisted)

	diff := cmp.Diff(
		[]State{RestoringSession, Anonymous, AwaitingPhone, AwaitingOTP, Authenticated},
		machine.History(),
	)
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, "9876543210", page.Typed(testSelectors.PhoneInput))
	require.True(t, saved.Valid)
	require.Equal(t, testClock.At, saved.IssuedAt)
	require.NotEqual(t, stale.ID, saved.ID)
	require.Len(t, tel.Filter("warning"), 1, "stale session should be reported once")
}

func TestMachineRepromptsInvalidPhone(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewMockStore(ctrl)
	prompter := NewMockPrompter(ctrl)

	store.EXPECT().Load(gomock.Any()).Return(session.Bundle{}, session.ErrNoBundle)
	gomock.InOrder(
		prompter.EXPECT().Phone(gomock.Any(), "").Return("12345", nil),
		prompter.EXPECT().Phone(gomock.Any(), gomock.Not("")).Return("98765abcde", nil),
		prompter.EXPECT().Phone(gomock.Any(), gomock.Not("")).Return("9876543210", nil),
	)
	gomock.InOrder(
		prompter.EXPECT().OTP(gomock.Any(), "").Return("12", nil),
		prompter.EXPECT().OTP(gomock.Any(), gomock.Not("")).Return("4321", nil),
	)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	page := loginSite("4321")
	machine := NewMachine(page, store, prompter, testClock, &telemetry.Recorder{}, testOptions())
	_, err := machine.Run(context.Background())
	require.NoError(t, err)

	// only the valid number ever reaches the page
	require.Equal(t, 1, page.CountCalls("type:"+testSelectors.PhoneInput))
	require.Equal(t, 1, page.CountCalls("type:"+testSelectors.OTPInput))
}

func TestMachineFailures(t *testing.T) {
	cases := []struct {
		name   string
		site   func() *browsertest.Page
		otp    bool
		reason string
		final  []State
	}{
		{
			name: "otp rejected",
			site: func() *browsertest.Page {
				return loginSite("0000")
			},
			otp:    true,
			reason: ReasonOTPRejected,
			final:  []State{Anonymous, AwaitingPhone, AwaitingOTP, Failed},
		},
		{
			name: "otp screen never loads",
			site: func() *browsertest.Page {
				page := loginSite("1234")
				delete(page.OnClick, testSelectors.ContinueButton)
				return page
			},
			reason: ReasonOTPScreen,
			final:  []State{Anonymous, AwaitingPhone, Failed},
		},
		{
			name: "login never completes",
			site: func() *browsertest.Page {
				page := loginSite("1234")
				page.OnType = nil
				return page
			},
			otp:    true,
			reason: ReasonLoginIncomplete,
			final:  []State{Anonymous, AwaitingPhone, AwaitingOTP, Failed},
		},
		{
			name: "login button missing",
			site: func() *browsertest.Page {
				page := loginSite("1234")
				page.Hide(testSelectors.LoginButton)
				return page
			},
			reason: ReasonLoginUI,
			final:  []State{Anonymous, Failed},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := session.NewMockStore(ctrl)
			prompter := NewMockPrompter(ctrl)

			store.EXPECT().Load(gomock.Any()).Return(session.Bundle{}, session.ErrNoBundle)
			if tc.reason != ReasonLoginUI {
				prompter.EXPECT().Phone(gomock.Any(), "").Return("9876543210", nil)
			}
			if tc.otp {
				prompter.EXPECT().OTP(gomock.Any(), "").Return("1234", nil)
			}

			machine := NewMachine(tc.site(), store, prompter, testClock, &telemetry.Recorder{}, testOptions())
			_, err := machine.Run(context.Background())

			var failed *FailedError
			require.True(t, errors.As(err, &failed), "expected FailedError, got %v", err)
			require.Equal(t, tc.reason, failed.Reason)
			require.Equal(t, Failed, machine.State())

			diff := cmp.Diff(tc.final, machine.History())
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestMachineSaveFailureStillAuthenticates(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewMockStore(ctrl)
	prompter := NewMockPrompter(ctrl)

	store.EXPECT().Load(gomock.Any()).Return(session.Bundle{}, session.ErrNoBundle)
	prompter.EXPECT().Phone(gomock.Any(), "").Return("9876543210", nil)
	prompter.EXPECT().OTP(gomock.Any(), "").Return("1234", nil)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	tel := &telemetry.Recorder{}
	machine := NewMachine(loginSite("1234"), store, prompter, testClock, tel, testOptions())
	result, err := machine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Authenticated, machine.State())
	require.False(t, result.SessionPersisted)
	require.Len(t, tel.Filter("broken"), 1)
}

func TestMachineForceRelogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewMockStore(ctrl)
	prompter := NewMockPrompter(ctrl)

	// Load must not be called, the stored bundle is discarded up front
	gomock.InOrder(
		store.EXPECT().Invalidate(gomock.Any()).Return(nil),
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
	)
	prompter.EXPECT().Phone(gomock.Any(), "").Return("9876543210", nil)
	prompter.EXPECT().OTP(gomock.Any(), "").Return("1234", nil)

	opts := testOptions()
	opts.ForceRelogin = true
	machine := NewMachine(loginSite("1234"), store, prompter, testClock, &telemetry.Recorder{}, opts)
	_, err := machine.Run(context.Background())
	require.NoError(t, err)
	require.NotContains(t, machine.History(), RestoringSession)
}

func TestMachineFillsLocation(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewMockStore(ctrl)
	prompter := NewMockPrompter(ctrl)

	store.EXPECT().Load(gomock.Any()).Return(session.Bundle{}, session.ErrNoBundle)
	prompter.EXPECT().Phone(gomock.Any(), "").Return("9876543210", nil)
	prompter.EXPECT().OTP(gomock.Any(), "").Return("1234", nil)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	page := loginSite("1234")
	page.Show(testSelectors.LocationInput)
	page.OnType = func(p *browsertest.Page, selector, text string) {
		switch selector {
		case testSelectors.LocationInput:
			p.Show(testSelectors.LocationSuggestion)
		case testSelectors.OTPInput:
			p.Show(testSelectors.Landmark)
		}
	}

	opts := testOptions()
	opts.Location = "Indiranagar"
	machine := NewMachine(page, store, prompter, testClock, &telemetry.Recorder{}, opts)
	_, err := machine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Indiranagar", page.Typed(testSelectors.LocationInput))
	require.Equal(t, 1, page.CountCalls("click:"+testSelectors.LocationSuggestion))
}

func TestMachineInputCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := session.NewMockStore(ctrl)
	prompter := NewMockPrompter(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	store.EXPECT().Load(gomock.Any()).Return(session.Bundle{}, session.ErrNoBundle)
	prompter.EXPECT().Phone(gomock.Any(), "").DoAndReturn(func(context.Context, string) (string, error) {
		cancel()
		return "", context.Canceled
	})

	machine := NewMachine(loginSite("1234"), store, prompter, testClock, &telemetry.Recorder{}, testOptions())
	_, err := machine.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	var failed *FailedError
	require.False(t, errors.As(err, &failed))
}

package auth

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateInputs(t *testing.T) {
	require.NoError(t, ValidatePhone("9876543210"))
	require.Error(t, ValidatePhone("987654321"))
	require.Error(t, ValidatePhone("98765432100"))
	require.Error(t, ValidatePhone("98765 4321"))
	require.Error(t, ValidatePhone("+919876543"))

	require.NoError(t, ValidateOTP("0420"))
	require.Error(t, ValidateOTP("042"))
	require.Error(t, ValidateOTP("04200"))
	require.Error(t, ValidateOTP("abcd"))
}

func TestTerminalPrompter(t *testing.T) {
	ctx := context.Background()
	in := strings.NewReader("  9123456789 \n1234\n")
	out := &bytes.Buffer{}

	// fd -1 is never a terminal, so the OTP is read as a plain line
	prompter := newTerminalPrompter(in, -1, out, "9876543210")

	phone, err := prompter.Phone(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "9876543210", phone, "preset phone answers the first request")
	require.Empty(t, out.String())

	phone, err = prompter.Phone(ctx, "phone number must be exactly 10 digits")
	require.NoError(t, err)
	require.Equal(t, "9123456789", phone)
	require.Contains(t, out.String(), "phone number must be exactly 10 digits")

	otp, err := prompter.OTP(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "1234", otp)

	_, err = prompter.OTP(ctx, "")
	require.Error(t, err, "input is exhausted")
}

func TestTerminalPrompterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prompter := newTerminalPrompter(strings.NewReader("9123456789\n"), -1, &bytes.Buffer{}, "")
	_, err := prompter.Phone(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
}

package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/term"
)

var phoneRegex = regexp.MustCompile(`^\d{10}$`)
var otpRegex = regexp.MustCompile(`^\d{4}$`)

// ValidatePhone accepts exactly 10 ascii digits.
func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("phone number must be exactly 10 digits")
	}
	return nil
}

// ValidateOTP accepts exactly 4 ascii digits.
func ValidateOTP(otp string) error {
	if !otpRegex.MatchString(otp) {
		return fmt.Errorf("OTP must be exactly 4 digits")
	}
	return nil
}

// Prompter supplies the interactive inputs of a login. The machine calls it at the
// moment the storefront asks for the value and waits for the answer.
//
// `problem` is empty on the first request and explains why the previous answer
// was rejected on later ones.
//
// note: fault injection point
//
//go:generate mockgen -source=prompter.go -destination=mock_prompter.go -package=auth
type Prompter interface {
	Phone(ctx context.Context, problem string) (string, error)
	OTP(ctx context.Context, problem string) (string, error)
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// TerminalPrompter asks for inputs on a line based terminal.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	// phone answers the first phone request without prompting when set.
	phone string
}

func NewTerminalPrompter(in *os.File, out io.Writer, presetPhone string) *TerminalPrompter {
	return newTerminalPrompter(in, int(in.Fd()), out, presetPhone)
}

func newTerminalPrompter(in io.Reader, fd int, out io.Writer, presetPhone string) *TerminalPrompter {
	return &TerminalPrompter{
		in:    bufio.NewReader(in),
		out:   out,
		fd:    fd,
		phone: presetPhone,
	}
}

func (p *TerminalPrompter) readLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	_, err := fmt.Fprint(p.out, prompt)
	if err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *TerminalPrompter) Phone(ctx context.Context, problem string) (string, error) {
	if p.phone != "" {
		phone := p.phone
		p.phone = ""
		return phone, nil
	}
	if problem != "" {
		fmt.Fprintf(p.out, "%s\n", problem)
	}
	return p.readLine(ctx, "Enter your 10-digit phone number: ")
}

func (p *TerminalPrompter) OTP(ctx context.Context, problem string) (string, error) {
	if problem != "" {
		fmt.Fprintf(p.out, "%s\n", problem)
	}
	if !term.IsTerminal(p.fd) {
		return p.readLine(ctx, "Enter the 4-digit OTP you received: ")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, "Enter the 4-digit OTP you received: ")
	otp, err := readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(otp)), nil
}

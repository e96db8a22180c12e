// Package notifier renders a digest template for a batch of new
// listings and delivers it over SMTP to a profile's recipients. The
// SMTP transport is treated as an opaque sink: failures are logged and
// returned, never allowed to fail the surrounding scrape cycle.
package notifier

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"

	"github.com/jeffrey/fundawatch/internal/models"
	"github.com/jeffrey/fundawatch/pkg/clock"
	"github.com/jeffrey/fundawatch/pkg/config"
	"github.com/jeffrey/fundawatch/pkg/logger"
)

// ErrMail indicates the SMTP transport rejected or failed to deliver
// the message. Callers must treat this as non-fatal to the cycle.
var ErrMail = errors.New("notifier: mail error")

// Notifier renders and sends new-listing digests.
type Notifier struct {
	cfg    config.SMTPConfig
	logger *logger.Logger
	tmpl   *template.Template
}

// New builds a Notifier bound to cfg. The digest template is compiled
// once at construction time.
func New(cfg config.SMTPConfig, log *logger.Logger) (*Notifier, error) {
	tmpl, err := template.New("digest").Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing digest template: %w", err)
	}
	return &Notifier{
		cfg:    cfg,
		logger: log.WithComponent("notifier"),
		tmpl:   tmpl,
	}, nil
}

// listingView is the per-listing shape substituted into the template;
// price and area are pre-formatted strings, matching the original
// digest's presentation rules.
type listingView struct {
	URL             string
	Street          string
	City            string
	PostalCode      string
	Price           string
	FloorArea       string
	Bedrooms        string
	EnergyLabel     string
	ImageURL        string
	ListedSinceText string
}

// Notify renders and sends a digest for newListings to recipients. If
// recipients or newListings is empty, it returns nil without sending.
func (n *Notifier) Notify(recipients []string, profileName string, newListings []models.Listing) error {
	if len(recipients) == 0 || len(newListings) == 0 {
		return nil
	}

	body, err := n.render(profileName, newListings)
	if err != nil {
		n.logger.WithError(err).Error("rendering digest template")
		return fmt.Errorf("%w: %v", ErrMail, err)
	}

	subject := fmt.Sprintf("Nieuwe woningen voor \"%s\"", profileName)
	msg, err := buildMessage(n.cfg.FromEmail, recipients, subject, body)
	if err != nil {
		n.logger.WithError(err).Error("building mime message")
		return fmt.Errorf("%w: %v", ErrMail, err)
	}

	if err := n.send(recipients, msg); err != nil {
		n.logger.WithError(err).Errorf("sending digest for profile %q", profileName)
		return fmt.Errorf("%w: %v", ErrMail, err)
	}

	n.logger.Infof("sent digest for profile %q to %d recipient(s), %d new listing(s)",
		profileName, len(recipients), len(newListings))
	return nil
}

func (n *Notifier) render(profileName string, listings []models.Listing) (string, error) {
	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, listingView{
			URL:             l.URL,
			Street:          l.Street,
			City:            l.City,
			PostalCode:      l.PostalCode,
			Price:           formatPrice(l.Price),
			FloorArea:       formatArea(l.FloorArea),
			Bedrooms:        formatIntOrNA(l.Bedrooms),
			EnergyLabel:     orNA(l.EnergyLabel),
			ImageURL:        l.ImageURL,
			ListedSinceText: orNA(l.ListedSinceText),
		})
	}

	var buf bytes.Buffer
	err := n.tmpl.Execute(&buf, map[string]interface{}{
		"ProfileName":  profileName,
		"Listings":     views,
		"ListingCount": len(views),
	})
	return buf.String(), err
}

func formatPrice(price *int) string {
	if price == nil {
		return "Price on request"
	}
	return fmt.Sprintf("€%s", thousands(*price))
}

func formatArea(area *int) string {
	if area == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d m²", *area)
}

func formatIntOrNA(v *int) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *v)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// thousands renders n with '.'-separated thousands groups, matching the
// Dutch convention used by the original digest ("€1.650").
func thousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, ".")
}

// buildMessage composes the outgoing MIME message using go-message's
// mail writer rather than hand-assembling headers and MIME boundaries.
func buildMessage(from string, to []string, subject, htmlBody string) ([]byte, error) {
	var buf bytes.Buffer

	addrFrom := mail.Address{Address: from}
	var addrTo []mail.Address
	for _, r := range to {
		addrTo = append(addrTo, mail.Address{Address: r})
	}

	var h mail.Header
	h.SetAddressList("From", []*mail.Address{&addrFrom})
	h.SetAddressList("To", addressPtrs(addrTo))
	h.SetSubject(subject)
	h.SetDate(nowForHeader())

	mw, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := mw.Write([]byte(htmlBody)); err != nil {
		mw.Close()
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// saslPlainAuth adapts a go-sasl Client to the stdlib's smtp.Auth
// interface, so outbound AUTH negotiation goes through go-sasl's
// mechanism handling rather than the stdlib's narrower built-in.
type saslPlainAuth struct {
	client sasl.Client
}

func (a *saslPlainAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	mech, ir, err := a.client.Start()
	return mech, ir, err
}

func (a *saslPlainAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	return a.client.Next(fromServer)
}

func addressPtrs(addrs []mail.Address) []*mail.Address {
	out := make([]*mail.Address, len(addrs))
	for i := range addrs {
		out[i] = &addrs[i]
	}
	return out
}

func nowForHeader() time.Time {
	return clock.Now()
}

// send dials the configured SMTP host and submits msg to recipients,
// addressed from cfg.FromEmail. AUTH negotiation uses go-sasl's PLAIN
// client (via saslPlainAuth) rather than the stdlib's built-in
// PlainAuth.
func (n *Notifier) send(recipients []string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("HELO: %w", err)
	}

	if n.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Host}); err != nil {
				return fmt.Errorf("STARTTLS: %w", err)
			}
		}
	}

	if n.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := &saslPlainAuth{client: sasl.NewPlainClient("", n.cfg.Username, n.cfg.Password)}
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("AUTH: %w", err)
			}
		}
	}

	if err := client.Mail(n.cfg.FromEmail); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}

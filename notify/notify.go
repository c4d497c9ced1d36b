/*
LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This file is part of Ocean Shorts. Ocean Shorts is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  Ocean Shorts is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see <http://www.gnu.org/licenses/>.
*/

// Package notify sends email notifications of failed runs via MailJet.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

// Kind is a kind of notification.
type Kind string

// Notification kinds.
const (
	KindUpload   Kind = "upload"   // Generation or upload failed.
	KindAuth     Kind = "auth"     // Channel credentials are missing or revoked.
	KindSchedule Kind = "schedule" // A scheduled job could not be installed.
)

const (
	defaultSender = "shorts@ausocean.org"
	defaultPeriod = time.Hour
)

// Notifier represents a notifier that uses the MailJet API to send email.
type Notifier struct {
	mutex      sync.Mutex     // Lock access.
	sender     string         // Sender email address.
	recipients []string       // Recipient email addresses.
	store      TimeStore      // Notification store (optional).
	period     time.Duration  // Minimum time between repeated notifications.
	filters    []string       // Message filters (optional).
	publicKey  string         // Public key for accessing MailJet API.
	privateKey string         // Private key for accessing MailJet API.
	log        logging.Logger // Logger (optional).

	// mail delivers messages; replaced in tests.
	mail func(*mailjet.MessagesV31) error
}

// New returns a notifier initialised with the supplied options.
func New(options ...Option) (*Notifier, error) {
	n := &Notifier{}
	err := n.Init(options...)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Init initializes a notifier with the supplied options. See
// WithSender, WithRecipient(s), WithFilter, WithStore, WithPeriod and
// WithSecrets for a description of the various options. Secrets are
// required to send actual emails; without them messages are only logged.
// Re-initialising reverts missing options to their defaults.
func (n *Notifier) Init(options ...Option) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.sender = defaultSender
	n.recipients = nil
	n.store = nil
	n.period = defaultPeriod
	n.filters = nil
	n.publicKey = ""
	n.privateKey = ""
	n.log = nil

	for i, opt := range options {
		err := opt(n)
		if err != nil {
			return fmt.Errorf("could not apply option # %d, %w", i, err)
		}
	}
	return nil
}

// Send sends a notification about channel to each recipient, depending
// on what options are present. With filters, all filters must match in
// order to send. With a store, a message is only sent if the same kind of
// message for the channel was not sent to the recipient within the period.
// With no recipients the notification is only logged.
func (n *Notifier) Send(ctx context.Context, channel string, kind Kind, msg string) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if len(n.recipients) == 0 {
		n.info("no notification recipients, not sending", "kind", kind, "channel", channel, "message", msg)
		return nil
	}

	for _, f := range n.filters {
		if !strings.Contains(msg, f) {
			n.debug("filter applied, not sending", "filter", f, "kind", kind, "channel", channel)
			return nil
		}
	}

	for _, recipient := range n.recipients {
		key := string(kind) + "." + channel + "." + recipient
		if n.store != nil {
			sendable, err := n.store.Sendable(ctx, n.period, key)
			if err != nil {
				n.warning("could not check notification store", "error", err)
			}
			if !sendable {
				n.debug("too soon to send", "recipient", recipient, "kind", kind, "channel", channel)
				continue
			}
		}

		n.info("sending notification", "recipient", recipient, "kind", kind, "channel", channel)
		if n.publicKey != "" && n.privateKey != "" {
			err := n.deliver(recipient, kind, channel, msg)
			if err != nil {
				return fmt.Errorf("could not send mail: %w", err)
			}
		}

		if n.store != nil {
			err := n.store.Sent(ctx, key)
			if err != nil {
				n.warning("could not record notification", "error", err)
			}
		}
	}
	return nil
}

func (n *Notifier) deliver(recipient string, kind Kind, channel, msg string) error {
	msgs := &mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: n.sender},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: recipient}},
		Subject:  fmt.Sprintf("Shorts %s notification: %s", kind, channel),
		TextPart: msg,
	}}}
	if n.mail != nil {
		return n.mail(msgs)
	}
	_, err := mailjet.NewMailjetClient(n.publicKey, n.privateKey).SendMailV31(msgs)
	return err
}

func (n *Notifier) debug(msg string, args ...interface{}) {
	if n.log != nil {
		n.log.Debug(msg, args...)
	}
}

func (n *Notifier) info(msg string, args ...interface{}) {
	if n.log != nil {
		n.log.Info(msg, args...)
	}
}

func (n *Notifier) warning(msg string, args ...interface{}) {
	if n.log != nil {
		n.log.Warning(msg, args...)
	}
}

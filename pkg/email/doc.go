// Package email sends transactional emails for the email channel.
//
// EmailSender is the provider abstraction. Two implementations are provided:
//   - NewPostmarkClient delivers through Postmark (github.com/mrz1836/postmark)
//     and returns the Postmark message id.
//   - NewDevSender writes each email to disk as a body file plus a JSON
//     metadata file, for local development.
//
// Basic usage:
//
//	client, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//		return err
//	}
//	messageID, err := client.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Welcome!",
//		BodyHTML: html,
//		Tag:      "welcome",
//	})
//
// # Errors
//
// ErrInvalidParams and ErrInvalidConfig report caller mistakes. ErrRejected
// marks a provider-side rejection (inactive recipient, invalid request) that
// will not succeed on retry. Other failures are wrapped with
// ErrFailedToSendEmail.
package email

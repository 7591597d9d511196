// Package ses provides email notification services via AWS SES
package ses

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	appConfig "forwarder-mapping-engine/internal/config"
	"forwarder-mapping-engine/internal/models"
	"forwarder-mapping-engine/internal/utils"
)

// Service handles SES email operations
type Service struct {
	client      *ses.Client
	fromEmail   string
	reviewEmail string
	reviewURL   string
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To        string
	Subject   string
	HTMLBody  string
	TextBody  string
	ReplyTo   string
	CC        []string
	BCC       []string
	ConfigSet string
}

// ReviewNotificationParams contains data for a manual-review notification.
// Sent when a document's identification lands in the review band or required
// fields came back unmapped.
type ReviewNotificationParams struct {
	DocumentID     string
	ForwarderCode  string
	ForwarderName  string
	Confidence     float64
	Status         models.IdentificationStatus
	MappedFields   int
	UnmappedFields []string
	ReviewURL      string
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service
func NewService(ctx context.Context) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	appCfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	client := ses.NewFromConfig(cfg)

	return &Service{
		client:      client,
		fromEmail:   appCfg.SESSenderEmail,
		reviewEmail: appCfg.ReviewNotifyEmail,
		reviewURL:   appCfg.ReviewBaseURL,
	}, nil
}

// SendEmail sends a basic email
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (*SendEmailResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{params.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	// Add HTML body if provided
	if params.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	// Add text body if provided
	if params.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	// Add CC addresses
	if len(params.CC) > 0 {
		input.Destination.CcAddresses = params.CC
	}

	// Add BCC addresses
	if len(params.BCC) > 0 {
		input.Destination.BccAddresses = params.BCC
	}

	// Add reply-to
	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	// Add config set if specified
	if params.ConfigSet != "" {
		input.ConfigurationSetName = aws.String(params.ConfigSet)
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		utils.Logger.Error("Failed to send email",
			zap.String("to", params.To),
			zap.String("subject", params.Subject),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	utils.Logger.Info("Email sent successfully",
		zap.String("to", params.To),
		zap.String("subject", params.Subject),
		zap.String("messageId", *result.MessageId),
	)

	return &SendEmailResult{
		MessageID: *result.MessageId,
		SentAt:    time.Now(),
	}, nil
}

// SendReviewNotification notifies the operations inbox that a document needs
// manual review.
func (s *Service) SendReviewNotification(ctx context.Context, params ReviewNotificationParams) (*SendEmailResult, error) {
	if params.ReviewURL == "" && s.reviewURL != "" {
		params.ReviewURL = s.reviewURL + "/documents/" + params.DocumentID
	}

	htmlBody, err := s.renderReviewNotificationHTML(params)
	if err != nil {
		return nil, fmt.Errorf("failed to render email template: %w", err)
	}

	textBody := s.renderReviewNotificationText(params)

	subject := fmt.Sprintf("Document %s needs review (%s, %.0f%% confidence)",
		params.DocumentID, params.Status, params.Confidence)

	return s.SendEmail(ctx, EmailParams{
		To:       s.reviewEmail,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendBatchReviewNotifications sends review notifications for multiple
// documents, collecting per-document failures.
func (s *Service) SendBatchReviewNotifications(ctx context.Context, notifications []ReviewNotificationParams) ([]SendEmailResult, []error) {
	results := make([]SendEmailResult, 0, len(notifications))
	errors := make([]error, 0)

	for _, notif := range notifications {
		result, err := s.SendReviewNotification(ctx, notif)
		if err != nil {
			errors = append(errors, fmt.Errorf("failed to send for %s: %w", notif.DocumentID, err))
			continue
		}
		results = append(results, *result)
	}

	utils.Logger.Info("Batch notifications sent",
		zap.Int("total", len(notifications)),
		zap.Int("success", len(results)),
		zap.Int("failed", len(errors)),
	)

	return results, errors
}

// renderReviewNotificationHTML renders the HTML email template
func (s *Service) renderReviewNotificationHTML(params ReviewNotificationParams) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #f6a821 0%, #d35400 100%); color: white; padding: 30px; border-radius: 10px 10px 0 0; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
        .detail-card { background: white; border-radius: 8px; padding: 20px; margin: 15px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .detail-card .label { font-size: 12px; color: #999; }
        .detail-card .value { font-weight: bold; color: #333; }
        .status-badge { display: inline-block; background: #d35400; color: white; padding: 5px 12px; border-radius: 20px; font-weight: bold; }
        .cta-button { display: inline-block; background: #d35400; color: white; padding: 15px 30px; text-decoration: none; border-radius: 8px; font-weight: bold; margin-top: 20px; }
        .footer { text-align: center; margin-top: 30px; color: #999; font-size: 12px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Document Needs Review</h1>
        <p>Document {{.DocumentID}} could not be processed automatically</p>
    </div>
    <div class="content">
        <div class="detail-card">
            <div class="label">Status</div>
            <div class="value"><span class="status-badge">{{.Status}}</span></div>
        </div>
        <div class="detail-card">
            <div class="label">Forwarder</div>
            <div class="value">{{if .ForwarderCode}}{{.ForwarderName}} ({{.ForwarderCode}}){{else}}Not identified{{end}}</div>
        </div>
        <div class="detail-card">
            <div class="label">Identification Confidence</div>
            <div class="value">{{printf "%.0f" .Confidence}}%</div>
        </div>
        <div class="detail-card">
            <div class="label">Mapped Fields</div>
            <div class="value">{{.MappedFields}}</div>
        </div>
        {{if .UnmappedFields}}
        <div class="detail-card">
            <div class="label">Unmapped Fields</div>
            <div class="value">{{range .UnmappedFields}}{{.}} {{end}}</div>
        </div>
        {{end}}

        {{if .ReviewURL}}
        <div style="text-align: center;">
            <a href="{{.ReviewURL}}" class="cta-button">Open Review</a>
        </div>
        {{end}}
    </div>
    <div class="footer">
        <p>This email was sent by Forwarder Mapping Engine</p>
    </div>
</body>
</html>`

	t, err := template.New("review_notification").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// renderReviewNotificationText renders plain text version
func (s *Service) renderReviewNotificationText(params ReviewNotificationParams) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Document %s needs manual review.\n\n", params.DocumentID))
	buf.WriteString(fmt.Sprintf("Status: %s\n", params.Status))
	if params.ForwarderCode != "" {
		buf.WriteString(fmt.Sprintf("Forwarder: %s (%s)\n", params.ForwarderName, params.ForwarderCode))
	} else {
		buf.WriteString("Forwarder: not identified\n")
	}
	buf.WriteString(fmt.Sprintf("Identification confidence: %.0f%%\n", params.Confidence))
	buf.WriteString(fmt.Sprintf("Mapped fields: %d\n", params.MappedFields))

	if len(params.UnmappedFields) > 0 {
		buf.WriteString("Unmapped fields:\n")
		for _, field := range params.UnmappedFields {
			buf.WriteString(fmt.Sprintf("  - %s\n", field))
		}
	}

	if params.ReviewURL != "" {
		buf.WriteString(fmt.Sprintf("\nOpen review: %s\n", params.ReviewURL))
	}

	buf.WriteString("\nForwarder Mapping Engine\n")

	return buf.String()
}

// VerifyEmailAddress verifies an email address for sending
func (s *Service) VerifyEmailAddress(ctx context.Context, email string) error {
	input := &ses.VerifyEmailAddressInput{
		EmailAddress: aws.String(email),
	}

	_, err := s.client.VerifyEmailAddress(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}

	utils.Logger.Info("Email verification initiated", zap.String("email", email))
	return nil
}

// GetSendQuota returns the current SES sending quota
func (s *Service) GetSendQuota(ctx context.Context) (*ses.GetSendQuotaOutput, error) {
	result, err := s.client.GetSendQuota(ctx, &ses.GetSendQuotaInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get send quota: %w", err)
	}
	return result, nil
}

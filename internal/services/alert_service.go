package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"golang.org/x/time/rate"
)

const (
	alertSendTimeout = 10 * time.Second
	// one alert every 30s, bursts of 5
	alertRateInterval = 30 * time.Second
	alertBurst        = 5
)

// sesAPI is the subset of the SES client used for alerts
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AlertService emails security alerts through AWS SES. Alerts beyond the
// rate limit are dropped and logged.
type AlertService struct {
	client      sesAPI
	fromAddress string
	recipient   string
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewSESAlertService loads the default AWS credential chain for region
func NewSESAlertService(ctx context.Context, region, fromAddress, recipient string, logger *slog.Logger) (*AlertService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newAlertService(ses.NewFromConfig(cfg), fromAddress, recipient, logger), nil
}

func newAlertService(client sesAPI, fromAddress, recipient string, logger *slog.Logger) *AlertService {
	return &AlertService{
		client:      client,
		fromAddress: fromAddress,
		recipient:   recipient,
		limiter:     rate.NewLimiter(rate.Every(alertRateInterval), alertBurst),
		logger:      logger,
	}
}

// HostBlocked matches BlockHook. The email is sent in the background.
func (s *AlertService) HostBlocked(ip string, blockedUntil time.Time) {
	if !s.limiter.Allow() {
		s.logger.Warn("security alert suppressed by rate limit", slog.String("ip_address", ip))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertSendTimeout)
		defer cancel()

		if err := s.sendHostBlocked(ctx, ip, blockedUntil); err != nil {
			s.logger.Error("failed to send security alert",
				slog.String("ip_address", ip),
				slog.Any("error", err))
		}
	}()
}

func (s *AlertService) sendHostBlocked(ctx context.Context, ip string, blockedUntil time.Time) error {
	subject := fmt.Sprintf("Host bloqueado por intentos fallidos: %s", ip)
	body := fmt.Sprintf(
		"La dirección %s acumuló demasiados intentos de inicio de sesión fallidos.\n"+
			"Bloqueada hasta: %s (UTC).\n",
		ip, blockedUntil.UTC().Format(time.RFC3339))

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder for image.Decode
	"image/jpeg"
	_ "image/png" // register decoder for image.Decode
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/config"
	"makerhub/b2b/internal/email"
	"makerhub/b2b/internal/notify"
	"makerhub/b2b/internal/services"
	"makerhub/b2b/internal/storage"
	"makerhub/b2b/internal/utils"
)

// Task types handled by the background worker. Notification delivery uses the
// type registered by the notify package so API and worker stay in sync.
const (
	TypeNotificationDeliver = notify.TypeNotificationDeliver
	TypeAttachmentProcess   = "attachment:process"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	storageService storage.IS3Storage
	quoteService   services.IQuoteService
	userService    services.IUserService
	configService  services.IConfigService
	taskClient     *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	quoteService services.IQuoteService,
	userService services.IUserService,
	configService services.IConfigService,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		storageService: storageService,
		quoteService:   quoteService,
		userService:    userService,
		configService:  configService,
		taskClient:     taskClient,
	}
}

// SetupServer configures and starts an Asynq server instance. Returns nil in
// API-only mode. The caller owns shutdown.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isBgWorker bool) *asynq.Server {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical":      6,
				"notifications": 5,
				"attachments":   4,
				"default":       3,
				"low":           1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	if !isBgWorker {
		fmt.Println("Running in API mode, no task server started.")
		return nil
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotificationDeliver, processor.HandleNotificationDeliverTask)
	mux.HandleFunc(TypeAttachmentProcess, processor.HandleAttachmentProcessTask)
	fmt.Println("Registered background task handlers.")

	if err := srv.Start(mux); err != nil {
		log.Fatalf("Could not start Asynq server: %v", err)
	}

	return srv
}

// --- Task Handlers ---

// HandleNotificationDeliverTask resolves the recipient and delivers a quote
// notification by email.
func (p *TaskProcessor) HandleNotificationDeliverTask(ctx context.Context, t *asynq.Task) error {
	var payload notify.Notification
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal notification payload: %v: %w", err, asynq.SkipRetry)
	}

	user, err := p.userService.FindByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Printf("Notification recipient %s no longer exists, dropping %s", payload.UserID, payload.EventKey)
			return fmt.Errorf("recipient not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to resolve notification recipient %s: %w", payload.UserID, err)
	}
	if user.Email == "" {
		log.Printf("Notification recipient %s has no email, dropping %s", payload.UserID, payload.EventKey)
		return fmt.Errorf("recipient has no email: %w", asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@makerhub.example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, user.Email)
	}

	subject := fmt.Sprintf("[%s] %s", p.configService.GetString(ctx, "APP_NAME", p.cfg.AppName), payload.Title)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", user.Email))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(payload.Body)
	if quoteID, ok := payload.Data["quote_id"]; ok {
		sb.WriteString(fmt.Sprintf("\r\n\r\nQuote reference: %s", quoteID))
	}
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{user.Email}, subject, []byte(sb.String())); err != nil {
		log.Printf("Notification email to %s failed (will retry): %v", user.Email, err)
		return err
	}

	log.Printf("Notification %s delivered to %s", payload.EventKey, user.Email)
	return nil
}

// AttachmentTaskPayload identifies an uploaded attachment awaiting processing.
type AttachmentTaskPayload struct {
	QuoteID     string `json:"quote_id"`
	ActorID     string `json:"actor_id"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
}

// HandleAttachmentProcessTask verifies an uploaded attachment, normalizes
// image attachments, and registers the object key on the quote. The object may
// not exist yet when the task first runs (the client uploads against a
// presigned URL), so a missing key is retried.
func (p *TaskProcessor) HandleAttachmentProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AttachmentTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal attachment payload: %v: %w", err, asynq.SkipRetry)
	}

	quoteID, err := utils.ParseShortID(payload.QuoteID)
	if err != nil {
		return fmt.Errorf("invalid quote ID in attachment payload: %w", asynq.SkipRetry)
	}
	actorID, err := utils.ParseShortID(payload.ActorID)
	if err != nil {
		return fmt.Errorf("invalid actor ID in attachment payload: %w", asynq.SkipRetry)
	}

	data, err := p.storageService.GetObject(ctx, payload.Key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("attachment %s not uploaded yet: %w", payload.Key, err)
		}
		return fmt.Errorf("failed to download attachment %s: %w", payload.Key, err)
	}

	maxSizeBytes := int64(p.cfg.AttachmentMaxSizeMB) * 1024 * 1024
	if int64(len(data)) > maxSizeBytes {
		log.Printf("Attachment %s exceeds max size (%d > %d bytes). Dropping.", payload.Key, len(data), maxSizeBytes)
		return fmt.Errorf("attachment exceeds max size: %w", asynq.SkipRetry)
	}

	if strings.HasPrefix(payload.ContentType, "image/") {
		if err := p.normalizeImage(ctx, payload.Key, data, maxSizeBytes); err != nil {
			return err
		}
	}

	if err := p.quoteService.RegisterAttachment(ctx, quoteID, actorID, payload.Key); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Printf("Quote %s gone before attachment %s registered.", payload.QuoteID, payload.Key)
			return fmt.Errorf("quote not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to register attachment %s on quote %s: %w", payload.Key, payload.QuoteID, err)
	}

	log.Printf("Attachment task processed: Key=%s, QuoteID=%s", payload.Key, payload.QuoteID)
	return nil
}

// normalizeImage re-encodes oversized image attachments as bounded JPEGs,
// overwriting the original object.
func (p *TaskProcessor) normalizeImage(ctx context.Context, key string, data []byte, maxSizeBytes int64) error {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("Error decoding image attachment %s: %v", key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.AttachmentMaxDimension)
	if uint(img.Bounds().Dx()) <= maxDim && uint(img.Bounds().Dy()) <= maxDim {
		return nil
	}

	log.Printf("Resizing attachment %s (format %s, original %dx%d, max %d)", key, format, img.Bounds().Dx(), img.Bounds().Dy(), maxDim)
	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to re-encode resized attachment %s: %w", key, err)
	}
	if int64(buf.Len()) > maxSizeBytes {
		return fmt.Errorf("resized attachment still exceeds max size: %w", asynq.SkipRetry)
	}

	if err := p.storageService.PutObject(ctx, key, "image/jpeg", buf.Bytes()); err != nil {
		return fmt.Errorf("failed to upload processed attachment %s: %w", key, err)
	}
	return nil
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/girish1208dev/print-service/models"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

// NotificationMessage is the payload handed to the notification side channel
type NotificationMessage struct {
	Recipient string        `json:"to"`
	Subject   string        `json:"subject"`
	HTMLBody  string        `json:"body"`
	Order     *models.Order `json:"orderDetails,omitempty"`
}

// Dispatcher delivers an operator notification for a submitted order
type Dispatcher interface {
	Notify(ctx context.Context, order models.Order) error
}

var orderSheetTemplate = template.Must(template.New("order").Funcs(template.FuncMap{
	"date":    models.FormatOrderDate,
	"preview": previewSrc,
}).Parse(`<html>
  <head>
    <style>
      body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
      .container { max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px; }
      .header { background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
      .section { margin-bottom: 20px; }
      h1, h2 { color: #0066cc; }
      .total { font-size: 18px; font-weight: bold; background-color: #f8f9fa; padding: 10px; border-radius: 5px; }
      .photos img { width: 120px; margin: 4px; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="header">
        <h1>NEW PHOTO PRINT ORDER</h1>
        <p>Order {{.Order.ID}}</p>
      </div>
      <div class="section">
        <h2>Customer Information</h2>
        <p><strong>Name:</strong> {{.Order.Customer.Name}}</p>
        <p><strong>Phone:</strong> {{.Order.Customer.Phone}}</p>
        <p><strong>Delivery Location:</strong> {{.Order.Customer.Location}}</p>
      </div>
      <div class="section">
        <h2>Order Details</h2>
        {{- if .Order.Photos}}
        <p><strong>Number of photos:</strong> {{.Order.PhotoCount}}</p>
        <p><strong>Photo Cost:</strong> Rs.{{.Order.PhotoCost}}</p>
        {{- else}}
        <p>No photos selected</p>
        {{- end}}
        <p><strong>Delivery Option:</strong> {{.Order.Delivery.Window}}</p>
        <p><strong>Delivery Cost:</strong> {{if .Order.Delivery.IsExpress}}Rs.{{.Order.Delivery.Fee}}{{else}}Free{{end}}</p>
      </div>
      {{- if .ShowPhotos}}
      <div class="section photos">
        {{- range .Order.Photos}}
        <img src="{{preview .Preview}}" alt="{{.ID}}">
        {{- end}}
      </div>
      {{- end}}
      <div class="section">
        <div class="total">
          <p>Total Cost: Rs.{{.Order.TotalCost}}</p>
          <p>Order Date: {{date .Order.CreatedAt}}</p>
        </div>
      </div>
    </div>
  </body>
</html>
`))

// previewSrc lets inline image data URLs through the template URL filter
func previewSrc(preview string) interface{} {
	if strings.HasPrefix(preview, "data:image/") {
		return template.URL(preview)
	}
	return preview
}

type orderSheet struct {
	Order      models.Order
	ShowPhotos bool
}

func renderOrderSheet(order models.Order, showPhotos bool) (string, error) {
	var buf bytes.Buffer
	if err := orderSheetTemplate.Execute(&buf, orderSheet{Order: order, ShowPhotos: showPhotos}); err != nil {
		return "", fmt.Errorf("failed to render order %s: %w", order.ID, err)
	}
	return buf.String(), nil
}

// FormatOrderEmail builds the operator notification for an order
func FormatOrderEmail(order models.Order, recipient string) (NotificationMessage, error) {
	body, err := renderOrderSheet(order, false)
	if err != nil {
		return NotificationMessage{}, err
	}
	o := order.Clone()
	return NotificationMessage{
		Recipient: recipient,
		Subject:   "New Photo Print Order from " + order.Customer.Name,
		HTMLBody:  body,
		Order:     &o,
	}, nil
}

// FormatPrintableOrder renders the printable sheet used by the admin reprint, photos included
func FormatPrintableOrder(order models.Order) (string, error) {
	return renderOrderSheet(order, true)
}

// AMQPDispatcher publishes notifications to a durable RabbitMQ queue consumed by the mailer
type AMQPDispatcher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queue     string
	recipient string

	mu sync.Mutex // amqp channels are not safe for concurrent publishing
}

// NewAMQPDispatcher connects to RabbitMQ and declares the notification queue
func NewAMQPDispatcher(url, queue, recipient string) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	log.Info().Str("queue", queue).Msg("RabbitMQ connected")

	return &AMQPDispatcher{
		conn:      conn,
		channel:   channel,
		queue:     queue,
		recipient: recipient,
	}, nil
}

// Notify formats the order email and publishes it as a persistent message
func (d *AMQPDispatcher) Notify(ctx context.Context, order models.Order) error {
	msg, err := FormatOrderEmail(order, d.recipient)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	err = d.channel.Publish("", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    order.ID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close closes the channel and connection for graceful shutdown
func (d *AMQPDispatcher) Close() error {
	if d.channel != nil {
		if err := d.channel.Close(); err != nil {
			return err
		}
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// LogDispatcher writes the notification to the application log.
// Used when no message broker is configured.
type LogDispatcher struct {
	Recipient string
}

func (d LogDispatcher) Notify(_ context.Context, order models.Order) error {
	msg, err := FormatOrderEmail(order, d.Recipient)
	if err != nil {
		return err
	}
	log.Info().
		Str("order_id", order.ID).
		Str("to", msg.Recipient).
		Str("subject", msg.Subject).
		Msg("Order notification")
	return nil
}

// NotifyAsync dispatches the notification on its own goroutine with its own timeout.
// Failures are logged and swallowed. The returned channel is closed when the attempt ends.
func NotifyAsync(dispatcher Dispatcher, order models.Order, timeout time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if dispatcher == nil {
		close(done)
		return done
	}

	order = order.Clone()
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				notificationOutcomes.WithLabelValues("failed").Inc()
				log.Error().Interface("panic", r).Str("order_id", order.ID).Msg("Notification dispatcher panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := dispatcher.Notify(ctx, order); err != nil {
			notificationOutcomes.WithLabelValues("failed").Inc()
			failure := &NotificationFailure{OrderID: order.ID, Err: err}
			log.Warn().Err(failure).Str("order_id", order.ID).Msg("Notification failed")
			return
		}
		notificationOutcomes.WithLabelValues("sent").Inc()
	}()
	return done
}

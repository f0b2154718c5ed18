package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-matcher/internal/config"
	"resume-matcher/internal/tracing"
	"resume-matcher/internal/types"
)

var mqTracer = otel.Tracer("resume-matcher/storage/rabbitmq")

// MessageQueue 消息队列接口
type MessageQueue interface {
	// 发布JSON格式消息
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error

	// 确保交换机存在
	EnsureExchange(exchangeName, exchangeType string, durable bool) error

	// 确保队列存在
	EnsureQueue(queueName string, durable bool) error

	// 绑定队列到交换机
	BindQueue(queueName, exchangeName, routingKey string) error

	// 关闭连接
	Close() error
}

var _ MessageQueue = (*RabbitMQ)(nil)

// RabbitMQ 提供消息队列功能
type RabbitMQ struct {
	conn        *amqp.Connection
	channels    chan *amqp.Channel
	mu          sync.Mutex
	exchangeMap map[string]bool
	queueMap    map[string]bool
	bindingMap  map[string]bool // key格式: "exchange:queue:routingKey"
	cfg         *config.RabbitMQConfig
	logger      zerolog.Logger
}

// NewRabbitMQ 创建RabbitMQ客户端
func NewRabbitMQ(cfg *config.RabbitMQConfig, logger zerolog.Logger) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	poolSize := cfg.ChannelPoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	mq := &RabbitMQ{
		conn:        conn,
		channels:    make(chan *amqp.Channel, poolSize),
		exchangeMap: make(map[string]bool),
		queueMap:    make(map[string]bool),
		bindingMap:  make(map[string]bool),
		cfg:         cfg,
		logger:      logger.With().Str("component", "rabbitmq").Logger(),
	}

	testCh, err := mq.getChannel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("无法创建RabbitMQ通道: %w", err)
	}
	mq.putChannel(testCh)

	mq.logger.Info().Int("channel_pool_size", poolSize).Msg("成功连接到RabbitMQ服务器")
	return mq, nil
}

// getChannel 优先复用池中的通道，池空时新建
func (r *RabbitMQ) getChannel() (*amqp.Channel, error) {
	for {
		select {
		case ch := <-r.channels:
			if ch.IsClosed() {
				continue
			}
			return ch, nil
		default:
			return r.conn.Channel()
		}
	}
}

// putChannel 归还通道，池满或通道已关闭时直接丢弃
func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch == nil || ch.IsClosed() {
		return
	}
	select {
	case r.channels <- ch:
	default:
		_ = ch.Close()
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	close(r.channels)
	for ch := range r.channels {
		_ = ch.Close()
	}
	return r.conn.Close()
}

// EnsureExchange 确保exchange存在
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" {
		return fmt.Errorf("exchange名称不能为空")
	}
	if exchangeName == "amq.default" || exchangeName == "default" {
		return fmt.Errorf("不能声明默认交换机 '%s'", exchangeName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exchangeMap[exchangeName] {
		return nil
	}

	ch, err := r.getChannel()
	if err != nil {
		return fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}
	defer r.putChannel(ch)

	err = ch.ExchangeDeclare(
		exchangeName, // exchange名称
		exchangeType, // exchange类型
		durable,      // 持久化
		false,        // 自动删除
		false,        // 内部专用
		false,        // 非阻塞
		nil,          // 参数
	)
	if err != nil {
		return fmt.Errorf("声明exchange失败: %w", err)
	}

	r.exchangeMap[exchangeName] = true
	r.logger.Debug().Str("exchange", exchangeName).Str("type", exchangeType).Msg("已确保exchange存在")
	return nil
}

// EnsureQueue 确保队列存在
func (r *RabbitMQ) EnsureQueue(queueName string, durable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queueMap[queueName] {
		return nil
	}

	ch, err := r.getChannel()
	if err != nil {
		return fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}
	defer r.putChannel(ch)

	_, err = ch.QueueDeclare(
		queueName, // 队列名称
		durable,   // 持久化
		false,     // 自动删除
		false,     // 独占
		false,     // 非阻塞
		nil,       // 参数
	)
	if err != nil {
		return fmt.Errorf("声明队列失败: %w", err)
	}

	r.queueMap[queueName] = true
	r.logger.Debug().Str("queue", queueName).Msg("已确保队列存在")
	return nil
}

// BindQueue 绑定队列到exchange
func (r *RabbitMQ) BindQueue(queueName, exchangeName, routingKey string) error {
	bindingKey := fmt.Sprintf("%s:%s:%s", exchangeName, queueName, routingKey)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bindingMap[bindingKey] {
		return nil
	}

	ch, err := r.getChannel()
	if err != nil {
		return fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}
	defer r.putChannel(ch)

	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("绑定队列到exchange失败: %w", err)
	}

	r.bindingMap[bindingKey] = true
	r.logger.Debug().Str("queue", queueName).Str("exchange", exchangeName).Str("routing_key", routingKey).Msg("已绑定队列")
	return nil
}

// PublishJSON 发布JSON格式的消息
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}

	ch, err := r.getChannel()
	if err != nil {
		return fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}
	defer r.putChannel(ch)

	var deliveryMode uint8 = amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}

	return ch.PublishWithContext(
		ctx,
		exchangeName, // exchange名
		routingKey,   // 路由键
		false,        // 强制
		false,        // 立即
		amqp.Publishing{
			DeliveryMode: deliveryMode,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// EventPublisher 筛选完成通知的发布者
type EventPublisher interface {
	PublishScreeningCompleted(ctx context.Context, event types.ScreeningCompletedEvent) error
}

// ScreeningEvents 将筛选完成事件发送到配置的 exchange
type ScreeningEvents struct {
	mq         MessageQueue
	exchange   string
	routingKey string
	timeout    time.Duration
}

// NewScreeningEvents 声明 exchange，并在配置了队列时完成绑定
func NewScreeningEvents(mq MessageQueue, cfg *config.RabbitMQConfig) (*ScreeningEvents, error) {
	if err := mq.EnsureExchange(cfg.ScreeningExchange, "topic", true); err != nil {
		return nil, err
	}
	if cfg.ScreeningEventsQueue != "" {
		if err := mq.EnsureQueue(cfg.ScreeningEventsQueue, true); err != nil {
			return nil, err
		}
		if err := mq.BindQueue(cfg.ScreeningEventsQueue, cfg.ScreeningExchange, cfg.CompletedRoutingKey); err != nil {
			return nil, err
		}
	}
	return &ScreeningEvents{
		mq:         mq,
		exchange:   cfg.ScreeningExchange,
		routingKey: cfg.CompletedRoutingKey,
		timeout:    config.Seconds(cfg.PublishTimeoutSeconds, 5*time.Second),
	}, nil
}

// PublishScreeningCompleted 发布一次筛选完成事件
func (e *ScreeningEvents) PublishScreeningCompleted(ctx context.Context, event types.ScreeningCompletedEvent) error {
	ctx, span := mqTracer.Start(ctx, "ScreeningEvents.Publish", trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", e.exchange),
			attribute.String("messaging.rabbitmq.routing_key", e.routingKey),
			attribute.String("run.id", event.RunID),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := e.mq.PublishJSON(ctx, e.exchange, e.routingKey, event, true); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("发布筛选完成事件失败: %w", err)
	}
	return nil
}

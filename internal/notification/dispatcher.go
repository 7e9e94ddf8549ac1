package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrDelivery は通知メールを送信できなかった場合のエラー。
var ErrDelivery = errors.New("notification: delivery failed")

// Observer は送信結果を受け取るインターフェース。metrics.Collectorが実装する。
type Observer interface {
	RecordNotification(template string, delivered bool)
}

// Dispatcher はテンプレートの描画、送信、結果の記録を行う。
// 送信は呼び出し元のゴルーチンで同期的に行う。
type Dispatcher struct {
	renderer *Renderer
	sender   Sender
	recorder Recorder
	observer Observer
	timeout  time.Duration
	now      func() time.Time
}

// DispatcherOption はDispatcherの任意設定。
type DispatcherOption func(*Dispatcher)

// WithRecorder は送信結果の記録先を設定する。
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithObserver は送信結果の通知先を設定する。
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithTimeout は1通あたりの送信タイムアウトを設定する。
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(renderer *Renderer, sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		renderer: renderer,
		sender:   sender,
		timeout:  10 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch はaddress宛にテンプレートの通知メールを送信する。
// 宛名はアドレスのローカル部から導出する。
// 送信に失敗した場合はErrDeliveryをラップしたエラーを返す。
func (d *Dispatcher) Dispatch(ctx context.Context, address string, tmpl Template) error {
	body, err := d.renderer.Render(tmpl, UsernameFromEmail(address))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sendErr := d.sender.Send(sendCtx, Message{
		To:       address,
		Subject:  tmpl.Subject(),
		HTMLBody: body,
	})

	d.record(ctx, address, tmpl, sendErr)

	if sendErr != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, sendErr)
	}
	return nil
}

// record は送信結果をObserverとRecorderに渡す。
// 記録の失敗は送信結果に影響させない。
func (d *Dispatcher) record(ctx context.Context, address string, tmpl Template, sendErr error) {
	delivered := sendErr == nil

	if d.observer != nil {
		d.observer.RecordNotification(string(tmpl), delivered)
	}

	if d.recorder == nil {
		return
	}
	rec := Record{
		ID:        uuid.New().String(),
		Template:  tmpl,
		Address:   address,
		Delivered: delivered,
		SentAt:    d.now().UTC(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := d.recorder.Record(ctx, rec); err != nil {
		slog.Warn("通知結果の記録に失敗しました",
			slog.String("template", string(tmpl)),
			slog.String("error", err.Error()),
		)
	}
}

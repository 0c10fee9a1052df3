package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailflow/backend/internal/cache"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/mail"
	"mailflow/backend/internal/monitoring"
	"mailflow/backend/internal/storage"
)

// SendStore 发送轮次需要的存储能力
type SendStore interface {
	storage.MailingRepository
	storage.MessageRepository
	storage.ClientRepository
}

// SendOptions 发送服务配置
type SendOptions struct {
	From    string
	LockTTL time.Duration
}

// SendService 执行群发的发送轮次
//
// 业务上的拒绝一律以 SendOutcome 返回；error 只表示基础设施故障。
type SendService struct {
	store     SendStore
	ledger    *Ledger
	transport mail.Transport
	locker    cache.Locker
	inv       *cache.Invalidator
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	from      string
	lockTTL   time.Duration
	now       func() time.Time
}

// NewSendService 创建发送服务
func NewSendService(
	store SendStore,
	ledger *Ledger,
	transport mail.Transport,
	locker cache.Locker,
	inv *cache.Invalidator,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
	opts SendOptions,
) *SendService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &SendService{
		store:     store,
		ledger:    ledger,
		transport: transport,
		locker:    locker,
		inv:       inv,
		metrics:   metrics,
		logger:    logger,
		from:      opts.From,
		lockTTL:   opts.LockTTL,
		now:       time.Now,
	}
}

// Execute 对群发执行一次发送轮次
//
// 检查顺序：存在性、访问权限、已结束、已停用、未到开始时间、并发占用。
// 单个收件人投递失败只记录失败投递，不中断轮次。
func (s *SendService) Execute(ctx context.Context, mailingID string, actor *domain.User) (*domain.SendResult, error) {
	mailing, err := s.store.GetMailing(mailingID)
	if errors.Is(err, domain.ErrMailingNotFound) {
		return s.reject(mailingID, domain.OutcomeNotFound, ""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load mailing: %w", err)
	}

	if !domain.CanSend(actor, mailing) {
		return s.reject(mailingID, domain.OutcomeForbidden, mailing.Status), nil
	}
	if outcome, ok := sendableOutcome(mailing, s.now()); !ok {
		return s.reject(mailingID, outcome, mailing.Status), nil
	}

	release, ok, err := s.locker.TryLock(ctx, cache.SendLockKey(mailingID), s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("claim mailing: %w", err)
	}
	if !ok {
		return s.reject(mailingID, domain.OutcomeInProgress, mailing.Status), nil
	}
	defer release()

	// 取得占用后重新读取，避免基于过期状态发送
	mailing, err = s.store.GetMailing(mailingID)
	if errors.Is(err, domain.ErrMailingNotFound) {
		return s.reject(mailingID, domain.OutcomeNotFound, ""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reload mailing: %w", err)
	}
	if outcome, ok := sendableOutcome(mailing, s.now()); !ok {
		return s.reject(mailingID, outcome, mailing.Status), nil
	}

	return s.run(ctx, mailing)
}

// run 执行一次完整的发送轮次；调用方取消 ctx 不会中断轮次，
// 每次投递只受传输层超时约束
func (s *SendService) run(ctx context.Context, mailing *domain.Mailing) (*domain.SendResult, error) {
	ctx = context.WithoutCancel(ctx)
	started := s.now()

	message, err := s.store.GetMessage(mailing.MessageID)
	if err != nil {
		return nil, fmt.Errorf("load message %s: %w", mailing.MessageID, err)
	}
	clients, err := s.store.GetClientsByIDs(mailing.RecipientIDs)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}

	var sent, failed int
	for i := range clients {
		if s.deliver(ctx, mailing, message, &clients[i]) {
			sent++
		} else {
			failed++
		}
	}

	mailing, err = s.store.CompleteMailingPass(mailing.ID)
	if err != nil {
		return nil, fmt.Errorf("complete send pass: %w", err)
	}
	s.inv.Owner(ctx, mailing.OwnerID)

	s.metrics.RecordSendOutcome(string(domain.OutcomeCompleted))
	s.metrics.RecordSendPassDuration(s.now().Sub(started))
	s.logger.Info("send pass completed",
		zap.String("mailing_id", mailing.ID),
		zap.String("status", string(mailing.Status)),
		zap.Int("sent", sent),
		zap.Int("failed", failed))

	return &domain.SendResult{
		MailingID: mailing.ID,
		Outcome:   domain.OutcomeCompleted,
		Status:    mailing.Status,
	}, nil
}

// deliver 投递给单个收件人并记账，返回是否投递成功
func (s *SendService) deliver(ctx context.Context, mailing *domain.Mailing, message *domain.Message, client *domain.Client) bool {
	status := domain.AttemptSuccess
	response := fmt.Sprintf("message sent successfully to %s", client.Email)

	if err := s.transport.Send(ctx, message.Subject, message.Body, s.from, []string{client.Email}); err != nil {
		status = domain.AttemptFailure
		response = err.Error()
		s.logger.Warn("delivery failed",
			zap.String("mailing_id", mailing.ID),
			zap.String("recipient", client.Email),
			zap.Error(err))
	}

	if _, err := s.ledger.Record(ctx, mailing, client, status, response); err != nil {
		s.logger.Error("failed to record attempt",
			zap.String("mailing_id", mailing.ID),
			zap.String("client_id", client.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
	return status == domain.AttemptSuccess
}

func (s *SendService) reject(mailingID string, outcome domain.SendOutcome, status domain.MailingStatus) *domain.SendResult {
	s.metrics.RecordSendOutcome(string(outcome))
	s.logger.Info("send request rejected",
		zap.String("mailing_id", mailingID),
		zap.String("outcome", string(outcome)))
	return &domain.SendResult{MailingID: mailingID, Outcome: outcome, Status: status}
}

// sendableOutcome 将状态守卫的错误映射为发送结果
func sendableOutcome(m *domain.Mailing, now time.Time) (domain.SendOutcome, bool) {
	switch err := m.CheckSendable(now); {
	case err == nil:
		return domain.OutcomeCompleted, true
	case errors.Is(err, domain.ErrMailingFinished):
		return domain.OutcomeAlreadyFinished, false
	case errors.Is(err, domain.ErrMailingDisabled):
		return domain.OutcomeDisabled, false
	default:
		return domain.OutcomeNotStarted, false
	}
}

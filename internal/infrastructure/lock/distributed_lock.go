package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：教练在手机端连点两次"加课时"（网络抖动导致重复提交）
//
// 如果没有分布式锁：
//   goroutine1: 查询课时=5 -> 加5 -> 课时=10   OK
//   goroutine2: 查询课时=5 -> 加5 -> 课时=10   流水记了两条，余额却只加了一次的量
//
// 加了分布式锁（配合乐观锁版本号）：
//   goroutine1: 获取锁 -> 读版本 -> 条件更新成功 -> 释放锁
//   goroutine2: 等锁... -> 读到新版本 -> 基于最新余额更新
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// UnlockScript 释放锁的 Lua 脚本：value 匹配才删除，避免删掉别人的锁
const UnlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	// SET key value NX EX timeout
	// 持有锁的进程崩溃时，锁到期自动释放
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		// 等待一段时间后重试
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 场景：A 获取锁 -> A 处理超时，锁自动过期 -> B 获取锁 -> A 执行完毕调用 Unlock
// 不校验 value 的话 A 会把 B 的锁删掉，所以删除前必须比对持有者标识
func (l *DistributedLock) Unlock(ctx context.Context) error {
	_, err := l.client.Eval(ctx, UnlockScript, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：按业务维度构造锁
// ============================================================================

// NewPackageLock 创建课时包锁（按教练-学员组合维度）
//
// 加课时和扣课时竞争的是同一行 client_package，
// 按组合加锁：不同学员之间可以并发，同一学员的变动串行化
func NewPackageLock(client *redis.Client, coachID, clientID int64) *DistributedLock {
	key := fmt.Sprintf("package:lock:pair:%d:%d", coachID, clientID)
	value := fmt.Sprintf("%d:%d:%d", coachID, clientID, time.Now().UnixNano())
	return NewDistributedLock(client, key, value, 30*time.Second)
}

// NewFinishLock 创建训练核销锁（按训练维度）
//
// 核销的最终防线是 workout 行上的条件更新，这把锁只是
// 让同一个训练的重复点击在锁上排队，少打几次数据库
func NewFinishLock(client *redis.Client, workoutID int64, owner string) *DistributedLock {
	key := fmt.Sprintf("workout:lock:finish:%d", workoutID)
	return NewDistributedLock(client, key, owner, 30*time.Second)
}

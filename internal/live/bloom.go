package live

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	bloomBits   = 1 << 16
	bloomHashes = 4
	bloomTTL    = 2 * time.Minute
)

// 文档注释：计算布隆过滤器位置
// 参数：data 为参与哈希的字节序列，m 为位图大小，k 为哈希次数。
// 背景：使用 FNV64a 结合索引扰动生成 k 个位置，用于 GetBit/SetBit。
func bloomPositions(data []byte, m uint32, k int) []int64 {
	pos := make([]int64, k)
	for i := 0; i < k; i++ {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write(data)
		pos[i] = int64(uint32(h.Sum64() % uint64(m)))
	}
	return pos
}

// 文档注释：检查并写入布隆过滤器位图
// 返回：true 表示首次见到（已写入位图，可继续处理）；false 表示已存在。
// 异常：Redis 交互错误时返回 error 且视为首次见到，避免阻断主流程。
func bloomCheckAndSet(ctx context.Context, rc *redis.Client, key string, positions []int64, ttl time.Duration) (bool, error) {
	if rc == nil {
		return true, nil
	}
	seen := true
	for _, p := range positions {
		b, err := rc.GetBit(ctx, key, p).Result()
		if err != nil {
			return true, err
		}
		if b == 0 {
			seen = false
		}
	}
	if seen {
		return false, nil
	}
	for _, p := range positions {
		_, _ = rc.SetBit(ctx, key, p, 1).Result()
	}
	_ = rc.Expire(ctx, key, ttl).Err()
	return true, nil
}

// FirstSeen：跟踪器重发同一帧时去重；frameID 为空时总是返回 true
// 约束：布隆过滤器存在误判，极少数新帧会被当作重复丢弃；位图两分钟过期。
func (s *Store) FirstSeen(ctx context.Context, areaID int, frameID string) (bool, error) {
	if frameID == "" {
		return true, nil
	}
	key := "ingest:frames:" + strconv.Itoa(areaID)
	return bloomCheckAndSet(ctx, s.rc, key, bloomPositions([]byte(frameID), bloomBits, bloomHashes), bloomTTL)
}

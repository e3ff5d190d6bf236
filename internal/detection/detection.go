// 包 detection：实时检测框与最近一次轮询快照
package detection

// Detection：单个跟踪目标在当前轮询周期内的检测结果
// 约束：Box 为原生分辨率下的 [x1,y1,x2,y2]；IsInside 由后端按持久化区域计算，客户端不校验。
type Detection struct {
	TrackID  int    `json:"track_id"`
	Box      [4]int `json:"box"`
	IsInside bool   `json:"is_inside"`
}

// Cache：最近一次成功拉取的检测集合
// 每次 Replace 整体替换，不合并、不比对、不保留历史；调用方负责串行访问。
type Cache struct {
	dets     []Detection
	revision uint64
}

func NewCache() *Cache { return &Cache{} }

// Replace：整体替换快照；入参被复制，调用方后续修改不影响缓存
func (c *Cache) Replace(dets []Detection) {
	cp := make([]Detection, len(dets))
	copy(cp, dets)
	c.dets = cp
	c.revision++
}

// Snapshot：返回当前快照的副本
func (c *Cache) Snapshot() []Detection {
	out := make([]Detection, len(c.dets))
	copy(out, c.dets)
	return out
}

func (c *Cache) Len() int         { return len(c.dets) }
func (c *Cache) Revision() uint64 { return c.revision }

package youtube

// ChannelListResponse channels.list 响应，只解码采样需要的字段
type ChannelListResponse struct {
	Kind     string    `json:"kind"`
	Etag     string    `json:"etag"`
	PageInfo *PageInfo `json:"pageInfo,omitempty"`
	Items    []Item    `json:"items"`
}

// PageInfo 分页信息
type PageInfo struct {
	TotalResults   int `json:"totalResults"`
	ResultsPerPage int `json:"resultsPerPage"`
}

// Item 单个频道
type Item struct {
	Kind       string     `json:"kind"`
	Etag       string     `json:"etag"`
	ID         string     `json:"id"`
	Statistics Statistics `json:"statistics"`
}

// Statistics 频道统计，计数以十进制字符串编码
type Statistics struct {
	ViewCount             string `json:"viewCount"`
	SubscriberCount       string `json:"subscriberCount"`
	HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
	VideoCount            string `json:"videoCount"`
}

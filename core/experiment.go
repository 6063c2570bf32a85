package core

// 实验轴名称
const (
	AxisAlgorithm = "algorithm"
	AxisOrigin    = "origin"
)

// 实验轴取值
const (
	// AlgorithmEphemeral 按期望向量做多样性挑选
	AlgorithmEphemeral = 0
	// AlgorithmPredictor 外部打分模型取 top N
	AlgorithmPredictor = 1
	// AlgorithmPopular / AlgorithmRandom 随机抽样后按 support 排序
	AlgorithmPopular = 2
	AlgorithmRandom  = 3

	// OriginAverage 从全体用户均值出发
	OriginAverage = 0
	// OriginUser 从用户长期隐向量出发
	OriginUser = 1
	// OriginRecent 从近期高分物品向量均值出发
	OriginRecent = 2
	// OriginFallback 用户不满足所分配条件时的回退取值
	OriginFallback = 3
)

// Experiment 是外部分配的实验分组，只读。
type Experiment struct {
	Algorithm int `yaml:"algorithm" json:"algorithm" koanf:"algorithm" validate:"gte=0,lte=3"`
	Origin    int `yaml:"origin" json:"origin" koanf:"origin" validate:"gte=0,lte=3"`
}

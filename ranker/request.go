package ranker

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/rushteam/ephemeral/core"
)

// RatedMovie 是请求中的一条评分记录；HasRating 为 false 时只计入已评分集合。
type RatedMovie struct {
	MovieID   int64
	Rating    float64
	HasRating bool
}

// Request 是解析后的排序请求。
type Request struct {
	UserID  int64
	Rounds  []core.Round
	Rated   []RatedMovie
	Ignored []int64

	// Experiment 非空时覆盖策略中的实验分组（由上游分流系统写入，不来自请求体）
	Experiment *core.Experiment
}

// RatedIDs 返回全部已评分物品 ID。
func (r *Request) RatedIDs() core.IDSet {
	s := make(core.IDSet, len(r.Rated))
	for _, rm := range r.Rated {
		s.Add(rm.MovieID)
	}
	return s
}

type wireRequest struct {
	UserID          *json.Number    `json:"userId"`
	Rounds          json.RawMessage `json:"rounds"`
	RatedMovies     json.RawMessage `json:"ratedMovies"`
	IgnoredMovieIDs json.RawMessage `json:"ignoredMovieIds"`
}

type wireRated struct {
	MovieID *json.Number `json:"movieId"`
	Rating  *json.Number `json:"rating"`
}

// DecodeRequest 解析请求体。levels 是策略配置的反馈类别，轮次中出现其他类别即拒绝。
//
// 每轮都会为全部已配置类别预置空列表；同一轮内重复的物品以最后一次出现的类别为准，位置保持首次出现处。
func DecodeRequest(data []byte, levels []core.PreferenceLevel) (*Request, error) {
	var w wireRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, core.WrapDomainError(core.ModuleRanker, core.ErrorCodeBadRequest, "malformed request body", err)
	}

	if w.UserID == nil {
		return nil, core.BadRequestf(core.ModuleRanker, "userId is required")
	}
	userID, err := w.UserID.Int64()
	if err != nil {
		return nil, core.BadRequestf(core.ModuleRanker, "userId must be an integer")
	}

	req := &Request{UserID: userID}
	if req.Rounds, err = decodeRounds(w.Rounds, levels); err != nil {
		return nil, err
	}
	if req.Rated, err = decodeRated(w.RatedMovies); err != nil {
		return nil, err
	}
	if req.Ignored, err = decodeIgnored(w.IgnoredMovieIDs); err != nil {
		return nil, err
	}
	return req, nil
}

func absent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeRounds(raw json.RawMessage, levels []core.PreferenceLevel) ([]core.Round, error) {
	if absent(raw) {
		return nil, nil
	}
	var rawRounds []json.RawMessage
	if err := json.Unmarshal(raw, &rawRounds); err != nil {
		return nil, core.BadRequestf(core.ModuleRanker, "rounds must be an array")
	}

	rounds := make([]core.Round, 0, len(rawRounds))
	for i, rr := range rawRounds {
		round, err := decodeRound(rr, levels)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", i+1, err)
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

type feedback struct {
	id    int64
	level core.PreferenceLevel
}

// decodeRound 按文档顺序读取 {"<itemId>": level, ...}。
func decodeRound(raw json.RawMessage, levels []core.PreferenceLevel) (core.Round, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, core.BadRequestf(core.ModuleRanker, "each round must be an object")
	}

	var (
		entries []feedback
		index   = make(map[int64]int)
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleRanker, core.ErrorCodeBadRequest, "malformed round", err)
		}
		key, _ := keyTok.(string)
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, core.BadRequestf(core.ModuleRanker, "movieIds must be integers")
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleRanker, core.ErrorCodeBadRequest, "malformed round", err)
		}
		lvl, err := parseLevel(valTok)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(levels, lvl) {
			return nil, core.BadRequestf(core.ModuleRanker, "preferences must be in %v", levels)
		}

		if at, ok := index[id]; ok {
			entries[at].level = lvl
			continue
		}
		index[id] = len(entries)
		entries = append(entries, feedback{id: id, level: lvl})
	}

	round := make(core.Round, len(levels))
	for _, lvl := range levels {
		round[lvl] = []int64{}
	}
	for _, e := range entries {
		round[e.level] = append(round[e.level], e.id)
	}
	return round, nil
}

// parseLevel 接受整数值的数字（1 与 1.0 等价）。
func parseLevel(tok json.Token) (core.PreferenceLevel, error) {
	num, ok := tok.(json.Number)
	if !ok {
		return 0, core.BadRequestf(core.ModuleRanker, "preferences must be integers")
	}
	if v, err := num.Int64(); err == nil {
		return core.PreferenceLevel(v), nil
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, core.BadRequestf(core.ModuleRanker, "preferences must be integers")
	}
	return core.PreferenceLevel(f), nil
}

// decodeRated 跳过缺少 movieId 或 movieId 非整数的条目。
func decodeRated(raw json.RawMessage) ([]RatedMovie, error) {
	if absent(raw) {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, core.BadRequestf(core.ModuleRanker, "ratedMovies must be an array")
	}

	out := make([]RatedMovie, 0, len(entries))
	for _, e := range entries {
		var w wireRated
		if err := json.Unmarshal(e, &w); err != nil || w.MovieID == nil {
			continue
		}
		id, err := w.MovieID.Int64()
		if err != nil {
			continue
		}
		rm := RatedMovie{MovieID: id}
		if w.Rating != nil {
			if v, err := w.Rating.Float64(); err == nil {
				rm.Rating = v
				rm.HasRating = true
			}
		}
		out = append(out, rm)
	}
	return out, nil
}

func decodeIgnored(raw json.RawMessage) ([]int64, error) {
	if absent(raw) {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, core.BadRequestf(core.ModuleRanker, "ignoredMovieIds must be an array of integers")
	}
	return ids, nil
}

// BuildExclusions 计算回看排除集：类别 lookback 为负时永久排除，为 k 时排除最近 k 轮，0 不排除。
func BuildExclusions(rounds []core.Round, lookback func(core.PreferenceLevel) int, ignored []int64) core.IDSet {
	ex := core.NewIDSet(ignored...)
	n := len(rounds)
	for i, round := range rounds {
		for _, lvl := range round.Levels() {
			back := lookback(lvl)
			if back < 0 || (back > 0 && i >= n-back) {
				ex.Add(round[lvl]...)
			}
		}
	}
	return ex
}

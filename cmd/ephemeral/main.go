// Command ephemeral 加载服务配置、排序策略、隐向量模型与候选集，对一份请求 JSON 执行一次排序并输出结果。
//
// 用法：
//
//	ephemeral -config service.yaml -request request.json
//	cat request.json | ephemeral -config service.yaml
//
// 退出码：0 成功，2 请求错误，3 配置错误或无法挑选，1 其他错误。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/ephemeral/config"
	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/feast"
	"github.com/rushteam/ephemeral/model"
	"github.com/rushteam/ephemeral/pkg/logging"
	"github.com/rushteam/ephemeral/ranker"
	"github.com/rushteam/ephemeral/recall"
	"github.com/rushteam/ephemeral/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ephemeral:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case core.IsBadRequest(err):
		return 2
	case core.IsConfiguration(err), core.IsOutOfRange(err):
		return 3
	default:
		return 1
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("ephemeral", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "service config file (YAML)")
		policyPath  = fs.String("policy", "", "ranker policy file, overrides the service config")
		requestPath = fs.String("request", "-", "request JSON file, - for stdin")
		timeout     = fs.Duration("timeout", 30*time.Second, "overall timeout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, err := config.LoadService(*configPath)
	if err != nil {
		return err
	}
	if *policyPath != "" {
		svc.Policy = *policyPath
	}
	logger := logging.New(svc.Logging)

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	r, closeFn, err := build(ctx, svc, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	body, err := readRequest(*requestPath, stdin)
	if err != nil {
		return err
	}
	out, err := r.RankJSON(ctx, body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(out))
	return err
}

func readRequest(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// build 是组合根：策略 -> 存储 -> 隐向量模型 -> 候选集 -> 打分模型 -> Ranker。
func build(ctx context.Context, svc *config.Service, logger zerolog.Logger) (*ranker.Ranker, func(), error) {
	policy, err := config.LoadRanker(svc.Policy)
	if err != nil {
		return nil, nil, fmt.Errorf("load policy %s: %w", svc.Policy, err)
	}

	st, err := openStore(ctx, svc)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = st.Close() }

	latent, err := loadModel(ctx, svc, st, logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	opts := []ranker.Option{ranker.WithLogger(logger)}
	predictor, err := newPredictor(ctx, svc.Predictor)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if predictor != nil {
		opts = append(opts, ranker.WithPredictor(predictor))
	}

	r, err := ranker.New(policy, latent, universeSource(svc, st, logger), opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return r, closeFn, nil
}

// openStore 打开隐向量索引与候选集所在的存储：redis 后端用 Redis，其余用 JSON 文件种子的内存存储
// （feast 后端未配置文件时同样使用 Redis）。
func openStore(ctx context.Context, svc *config.Service) (core.Store, error) {
	useRedis := svc.Model.Backend == config.BackendRedis ||
		(svc.Model.Backend == config.BackendFeast && svc.Model.File == "")
	if useRedis {
		return store.NewRedisStore(ctx, svc.Redis)
	}
	st, err := store.LoadMemoryStore(svc.Model.File)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, "load model file", err)
	}
	return st, nil
}

func loadModel(ctx context.Context, svc *config.Service, st core.Store, logger zerolog.Logger) (*model.LatentModel, error) {
	ctx, cancel := context.WithTimeout(ctx, svc.Model.LoadTimeout)
	defer cancel()

	index := model.NewStoreVectors(st, svc.Model.KeyPrefix)
	loader := &model.Loader{
		IDs:         index,
		Vectors:     index,
		BatchSize:   svc.Model.BatchSize,
		Concurrency: svc.Model.Concurrency,
		Logger:      logging.Component(logger, "model"),
	}
	if svc.Model.Backend == config.BackendFeast {
		fetcher, err := feast.NewVectorFetcher(svc.Model.Feast)
		if err != nil {
			return nil, err
		}
		loader.Vectors = fetcher
	}
	return loader.Load(ctx)
}

// newPredictor 按配置创建算法 1 的打分模型；latent 返回 nil，由 Ranker 使用隐向量点积。
func newPredictor(ctx context.Context, cfg config.PredictorConfig) (model.Predictor, error) {
	switch cfg.Kind {
	case config.PredictorRPC:
		return model.NewRPCModel("rpc", cfg.Endpoint, cfg.Timeout), nil
	case config.PredictorKServe:
		p := model.NewKServePredictor(cfg.Endpoint, cfg.ModelName, cfg.Protocol, cfg.Timeout)
		p.Token = cfg.Token
		if err := p.Ready(ctx); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}

func universeSource(svc *config.Service, st core.Store, logger zerolog.Logger) recall.Source {
	if len(svc.Universe.Keys) == 1 {
		return &recall.StoreUniverse{Store: st, Key: svc.Universe.Keys[0]}
	}
	sources := make([]recall.Source, 0, len(svc.Universe.Keys))
	for _, key := range svc.Universe.Keys {
		sources = append(sources, &recall.StoreUniverse{Store: st, Key: key})
	}
	return &recall.Fanout{
		Sources: sources,
		Timeout: svc.Universe.Timeout,
		Logger:  logging.Component(logger, "recall"),
	}
}

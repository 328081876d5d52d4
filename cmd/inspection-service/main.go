package main

import (
	"flag"
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/NovaFleet/NovaFleet/internal/common/config"
	"github.com/NovaFleet/NovaFleet/internal/common/db"
	"github.com/NovaFleet/NovaFleet/internal/common/logger"
	"github.com/NovaFleet/NovaFleet/internal/common/server"
	"github.com/NovaFleet/NovaFleet/internal/common/tracing"
	"github.com/NovaFleet/NovaFleet/internal/inspection"
)

var (
	configPath = flag.String("config", "configs/inspection-service.json", "配置文件路径")
	consulKey  = flag.String("consul-config-key", "", "从 Consul KV 读取配置的 key（优先于本地文件）")
)

func main() {
	flag.Parse()

	// 加载配置（Consul KV 优先，其次本地文件 / 默认值）
	var (
		cfg *config.Config
		err error
	)
	if *consulKey != "" {
		fileCfg, ferr := config.LoadConfig(*configPath)
		if ferr != nil {
			panic(fmt.Sprintf("failed to load config: %v", ferr))
		}
		cfg, err = config.LoadConfigFromConsulKV(fileCfg.Consul, *consulKey)
		if err != nil {
			panic(fmt.Sprintf("failed to load config from consul kv: %v", err))
		}
	} else {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(cfg.Server.Name, cfg.Jaeger)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gormDB, err := db.NewMySQL(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}
	if err := gormDB.AutoMigrate(&inspection.Inspection{}, &inspection.InspectionHistory{}); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	// 审计 sink：数据库表必挂；Redis 事件发布按配置开启（失败只降级）
	sinks := []inspection.HistorySink{inspection.NewGormHistorySink(gormDB)}
	if cfg.Redis.Enabled {
		rdb, err := db.NewRedis(cfg.Redis)
		if err != nil {
			log.Warnf("failed to connect redis, status-change events disabled: %v", err)
		} else {
			sinks = append(sinks, inspection.NewRedisHistorySink(rdb, cfg.Redis.Channel))
		}
	}

	svc := inspection.NewService(inspection.NewRepo(gormDB), inspection.SystemClock{}, log, sinks...)
	handler := inspection.NewHandler(svc, log)

	// 启动统一的 HTTP 服务模板
	if err := server.RunHTTPServer(cfg, log, func(r chi.Router) {
		handler.Routes(r)
	}); err != nil {
		log.Fatalf("inspection-service exited with error: %v", err)
	}
}

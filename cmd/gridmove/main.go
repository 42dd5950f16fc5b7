package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/gridmove/internal/config"
	"github.com/l1jgo/gridmove/internal/core/ecs"
	"github.com/l1jgo/gridmove/internal/core/event"
	coresys "github.com/l1jgo/gridmove/internal/core/system"
	"github.com/l1jgo/gridmove/internal/data"
	"github.com/l1jgo/gridmove/internal/grid"
	"github.com/l1jgo/gridmove/internal/handler"
	"github.com/l1jgo/gridmove/internal/movement"
	gonet "github.com/l1jgo/gridmove/internal/net"
	"github.com/l1jgo/gridmove/internal/net/packet"
	"github.com/l1jgo/gridmove/internal/pathfind"
	"github.com/l1jgo/gridmove/internal/patrol"
	"github.com/l1jgo/gridmove/internal/persist"
	"github.com/l1jgo/gridmove/internal/scripting"
	"github.com/l1jgo/gridmove/internal/system"
	"github.com/l1jgo/gridmove/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              gridmove  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        格子移動伺服器 · Go                \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(編號: %d)\033[0m\n\n", serverName, serverID)
}

// displayWidth counts CJK runes as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printSkip(msg string) {
	fmt.Printf("  \033[90m-\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("GRIDMOVE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Map data
	printSection("地圖資料")
	mapTable, err := data.LoadMapData(cfg.Map.List, cfg.Map.TileDir)
	if err != nil {
		return fmt.Errorf("map data: %w", err)
	}
	tileMap := mapTable.Get(cfg.Map.MapID)
	if tileMap == nil {
		return fmt.Errorf("map %d not in %s", cfg.Map.MapID, cfg.Map.List)
	}
	spawn := grid.Cell{X: cfg.Map.SpawnX, Y: cfg.Map.SpawnY}
	if !tileMap.IsWalkable(spawn) {
		return fmt.Errorf("player spawn %s is not walkable on map %d", spawn, cfg.Map.MapID)
	}
	printStat("地圖", mapTable.Count())
	printStat("可通行格子", tileMap.WalkableCount())
	fmt.Println()

	// 4. Movement core
	finder := pathfind.NewFinder(tileMap)
	engine := movement.NewEngine(log)
	validator := movement.NewValidator(tileMap, movement.Tolerances{
		SpeedMultiplier:   cfg.Movement.SpeedTolerance,
		GracePeriod:       cfg.Movement.GracePeriod,
		TeleportThreshold: cfg.Movement.TeleportThreshold,
	})
	ecsWorld := ecs.NewWorld()
	worldState := world.NewState(cfg.Movement.ViewRange)
	bus := event.NewBus()
	ctrl := patrol.NewController(finder, engine, log)
	ecsWorld.Registry().Register(engine, worldState, ctrl)

	// 5. Optional collaborators: policy scripts and the violation log
	printSection("擴充模組")
	var lua *scripting.Engine
	if cfg.Scripting.Dir != "" {
		lua, err = scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer lua.Close()
		printOK("Lua 違規策略已載入")
	} else {
		printSkip("未設定腳本目錄，違規一律校正")
	}

	violations := persist.NewViolationBuffer(0)
	var db *persist.DB
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err = persist.NewDB(ctx, cfg.Database, log)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功")
	} else {
		violations = nil
		printSkip("未設定資料庫，違規紀錄停用")
	}
	fmt.Println()

	// 6. Handler deps
	stats := &handler.Stats{}
	deps := &handler.Deps{
		Config:     cfg,
		Log:        log,
		ECS:        ecsWorld,
		World:      worldState,
		Engine:     engine,
		Finder:     finder,
		Validator:  validator,
		Bus:        bus,
		Scripting:  lua,
		Violations: violations,
		Stats:      stats,
	}
	deps.Broadcast = handler.NewBroadcaster(deps)
	engine.AddSink(deps.Broadcast)

	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, deps)

	// 7. Patrolling NPCs
	printSection("NPC")
	npcCount, err := spawnPatrols(cfg, deps, ctrl, tileMap)
	if err != nil {
		return fmt.Errorf("patrols: %w", err)
	}
	printStat("巡邏 NPC", npcCount)
	fmt.Println()

	// 8. Network gateway
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.SessionOptions{
		OutQueueSize:   cfg.Network.OutQueueSize,
		ReadTimeout:    cfg.Network.ReadTimeout,
		WriteTimeout:   cfg.Network.WriteTimeout,
		MaxMessageSize: cfg.Network.MaxMessageSize,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	deps.Outbox = netServer
	netServer.SetMessageHandler(handler.Dispatcher(pktReg, deps))

	// 9. Systems
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, deps))
	runner.Register(system.NewMovementSystem(engine))
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewPatrolSystem(ctrl, cfg.Network.PatrolRate))
	var violationLog *system.ViolationLogSystem
	if db != nil {
		violationLog = system.NewViolationLogSystem(violations, persist.NewViolationRepo(db), cfg.Database.FlushInterval, log)
		runner.Register(violationLog)
	}
	runner.Register(system.NewCleanupSystem(ecsWorld, bus))
	system.Subscribe(bus, ctrl, deps.Broadcast, log)

	netServer.Handle("/healthz", healthHandler(db))
	netServer.Handle("/metrics", metricsHandler(engine, worldState, netServer, runner, stats, violations))
	go netServer.AcceptLoop()

	// 10. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("監聽位址 %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("移動迴圈啟動 (tick: %s)", cfg.Network.TickRate))
	mode := "server_path"
	if cfg.Movement.ClientReported {
		mode = "client_reported"
	}
	printReady(fmt.Sprintf("移動模式 %s", mode))
	fmt.Println()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			runner.Tick(dt)
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := netServer.Shutdown(ctx); err != nil {
				log.Warn("關閉連線逾時", zap.Error(err))
			}
			if violationLog != nil {
				n := violationLog.Flush(ctx)
				log.Info("違規紀錄已寫入", zap.Int("count", n))
			}
			cancel()
			log.Info("伺服器已停止")
			return nil
		}
	}
}

// spawnPatrols registers every patrol_list entry as a self-paced entity.
// A missing list file just means no NPCs.
func spawnPatrols(cfg *config.Config, deps *handler.Deps, ctrl *patrol.Controller, tileMap *data.TileMap) (int, error) {
	if cfg.Npc.PatrolList == "" {
		return 0, nil
	}
	entries, err := data.LoadPatrolList(cfg.Npc.PatrolList)
	if errors.Is(err, fs.ErrNotExist) {
		deps.Log.Warn("找不到巡邏清單", zap.String("path", cfg.Npc.PatrolList))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range entries {
		spawn := p.Spawn.Cell()
		if !tileMap.IsWalkable(spawn) {
			deps.Log.Warn("巡邏 NPC 出生點不可通行，略過",
				zap.String("name", p.Name), zap.Stringer("spawn", spawn))
			continue
		}
		speed := p.Speed
		if speed == 0 {
			speed = cfg.Movement.NpcSpeed
		}
		id := deps.ECS.CreateEntity()
		if err := deps.Engine.RegisterEntity(id, spawn, speed, movement.SelfPaced); err != nil {
			deps.ECS.MarkForDestruction(id)
			return count, fmt.Errorf("register %s: %w", p.Name, err)
		}
		deps.World.Add(world.EntityInfo{
			ID:   id,
			Kind: world.KindNpc,
			Name: p.Name,
			Cell: spawn,
		})
		ctrl.Add(id, p.A.Cell(), p.B.Cell())
		count++
	}
	return count, nil
}

func healthHandler(db *persist.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("ok"))
	})
}

func metricsHandler(engine *movement.Engine, ws *world.State, srv *gonet.Server, runner *coresys.Runner, stats *handler.Stats, violations *persist.ViolationBuffer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		es := engine.Stats()
		ticks, lastTick, worstTick := runner.Stats()
		players, npcs := ws.Counts()
		out := map[string]any{
			"uptime":          engine.GetServerUptime(),
			"entities":        engine.Len(),
			"players":         players,
			"npcs":            npcs,
			"sessions":        srv.SessionCount(),
			"commands":        es.Commands,
			"paths_completed": es.PathsCompleted,
			"ack_mismatches":  es.Mismatches,
			"ticks":           ticks,
			"tick_last_ms":    float64(lastTick) / float64(time.Millisecond),
			"tick_worst_ms":   float64(worstTick) / float64(time.Millisecond),
			"gateway":         stats.Snapshot(),
		}
		if violations != nil {
			out["violations_pending"] = violations.Len()
			out["violations_dropped"] = violations.Dropped()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})
}

// newLogger builds the console/json zap logger and, when logging.file is
// set, tees it into a size-rotated file.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil || cfg.File == "" {
		return logger, err
	}

	fileEnc := zap.NewProductionEncoderConfig()
	fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rotator), zapCfg.Level)
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}

// 运维 CLI：直连文档存储维护缓存条目（查/增/删/清扫/统计），用于排障与数据修正
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"geo-cache/internal/geocache"
	"geo-cache/internal/migrate"
	"geo-cache/internal/store"
	"geo-cache/internal/utils"

	"github.com/joho/godotenv"
)

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  put <lat> <lng> <address...>")
	fmt.Println("  get <address...>")
	fmt.Println("  del <address...>")
	fmt.Println("  search <query> [limit]")
	fmt.Println("  near <lat> <lng> <radius_km>")
	fmt.Println("  sweep")
	fmt.Println("  stats")
	fmt.Println("  help")
	fmt.Println("  exit")
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	s, _ := r.ReadString('\n')
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func main() {
	var envFile string
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--env" && i+1 < len(os.Args) {
			envFile = os.Args[i+1]
			i++
		} else if strings.HasSuffix(os.Args[i], ".env") {
			envFile = os.Args[i]
		}
	}
	var db *sql.DB
	var err error
	if envFile != "" {
		_ = godotenv.Load(envFile)
		db, err = utils.OpenPostgresFromEnv()
	} else {
		r := bufio.NewReader(os.Stdin)
		fmt.Println("输入数据库连接参数，回车使用默认值")
		host := prompt(r, "PG_HOST", "127.0.0.1")
		port := prompt(r, "PG_PORT", "5432")
		user := prompt(r, "PG_USER", "postgres")
		pass := prompt(r, "PG_PASSWORD", "")
		name := prompt(r, "PG_DB", "geocache")
		ssl := prompt(r, "PG_SSLMODE", "disable")
		dsn := "postgres://" + user
		if pass != "" {
			dsn += ":" + pass
		}
		dsn += "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
		var st *store.Store
		st, err = store.Open(dsn)
		if err == nil {
			db = st.DB()
		}
	}
	if err != nil {
		fmt.Println("db error:", err)
		os.Exit(1)
	}
	if err := migrate.EnsureSchema(db); err != nil {
		fmt.Println("schema error:", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.AttachDB(db)
	gc := geocache.New(st, geocache.DefaultTTL)
	fmt.Println("geocache ctl ready")
	printHelp()
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		switch cmd {
		case "exit", "quit":
			return
		case "help":
			printHelp()
		case "put":
			// 背景：人工补录已知坐标（如内部场站），跳过供应商直接落库
			if len(parts) < 4 {
				fmt.Println("usage: put <lat> <lng> <address...>")
				continue
			}
			lat, e1 := strconv.ParseFloat(parts[1], 64)
			lng, e2 := strconv.ParseFloat(parts[2], 64)
			if e1 != nil || e2 != nil {
				fmt.Println("bad coordinates")
				continue
			}
			addr := strings.Join(parts[3:], " ")
			c, cancel := ctx()
			key, err := gc.Put(c, addr, geocache.Result{
				ResolvedAddress: addr,
				Coordinates:     geocache.Coordinates{Latitude: lat, Longitude: lng},
			})
			cancel()
			if err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println("ok", key)
			}
		case "get":
			if len(parts) < 2 {
				fmt.Println("usage: get <address...>")
				continue
			}
			addr := strings.Join(parts[1:], " ")
			c, cancel := ctx()
			res, ok := gc.Get(c, addr)
			cancel()
			if !ok {
				fmt.Println("miss")
				continue
			}
			fmt.Printf("%s | %.6f,%.6f | cached_at=%s\n",
				res.ResolvedAddress, res.Coordinates.Latitude, res.Coordinates.Longitude,
				res.CacheTimestamp.Format(time.RFC3339))
		case "del":
			if len(parts) < 2 {
				fmt.Println("usage: del <address...>")
				continue
			}
			addr := strings.Join(parts[1:], " ")
			c, cancel := ctx()
			err := st.Delete(c, geocache.HashKey(addr))
			cancel()
			if err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println("ok")
			}
		case "search":
			if len(parts) < 2 {
				fmt.Println("usage: search <query> [limit]")
				continue
			}
			limit := 20
			if len(parts) >= 3 {
				if n, e := strconv.Atoi(parts[2]); e == nil && n > 0 {
					limit = n
				}
			}
			c, cancel := ctx()
			xs, err := gc.SearchSimilar(c, parts[1], limit)
			cancel()
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			for _, r := range xs {
				fmt.Printf("%s -> %.6f,%.6f\n", r.Address, r.Coordinates.Latitude, r.Coordinates.Longitude)
			}
		case "near":
			if len(parts) < 4 {
				fmt.Println("usage: near <lat> <lng> <radius_km>")
				continue
			}
			lat, e1 := strconv.ParseFloat(parts[1], 64)
			lng, e2 := strconv.ParseFloat(parts[2], 64)
			radius, e3 := strconv.ParseFloat(parts[3], 64)
			if e1 != nil || e2 != nil || e3 != nil {
				fmt.Println("bad arguments")
				continue
			}
			c, cancel := ctx()
			xs, err := gc.Nearby(c, lat, lng, radius)
			cancel()
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			for _, n := range xs {
				fmt.Printf("%.2fkm  %s\n", n.DistanceKm, n.Result.Address)
			}
		case "sweep":
			c, cancel := ctx()
			n, err := gc.SweepExpired(c)
			cancel()
			if err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println("removed:", n)
			}
		case "stats":
			c, cancel := ctx()
			s, err := gc.Stats(c)
			cancel()
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("total=%d valid=%d expired=%d usage=%d avg=%.2f\n",
				s.TotalEntries, s.ValidEntries, s.ExpiredEntries, s.TotalUsage, s.AverageUsage)
			if s.MostUsed != nil {
				fmt.Printf("most used: %s (%d)\n", s.MostUsed.Address, s.MostUsedCount)
			}
		default:
			fmt.Println("unknown command")
		}
	}
}

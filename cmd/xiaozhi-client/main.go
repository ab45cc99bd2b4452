package main

import (
	"flag"
	"fmt"
	"os"

	"xiaozhi-vision-go/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认 .config.yaml）")
	flag.Parse()

	if err := bootstrap.Run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "启动失败: %v\n", err)
		os.Exit(1)
	}
}

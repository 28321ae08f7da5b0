package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schemamapper/internal/config"
	"schemamapper/server"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════")
	log.Println("Запуск сервера маппинга колонок...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("✗ Ошибка загрузки конфигурации: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("✗ Ошибка создания сервера: %v", err)
	}

	// Запускаем сервер в отдельной горутине
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("✗ Ошибка запуска сервера: %v", err)
		}
	}()

	log.Println("═══════════════════════════════════════════════════════")
	log.Printf("✓ Сервер запущен на порту %s", cfg.Port)
	log.Printf("✓ API доступно: http://localhost:%s/api/v1/mapping", cfg.Port)
	log.Printf("✓ База знаний: %s", cfg.Knowledge.Path)
	if cfg.EscalationEnabled() {
		log.Printf("✓ LLM-эскалация включена: %s", cfg.Escalation.Model)
	} else {
		log.Println("✓ LLM-эскалация отключена (нет API-ключа)")
	}
	log.Println("  Для остановки нажмите Ctrl+C")
	log.Println("═══════════════════════════════════════════════════════")

	// Graceful shutdown по сигналу
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("⏹  Получен сигнал завершения, останавливаю сервер...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("✗ Ошибка при остановке сервера: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Сервер успешно остановлен")
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketplace-core/internal/event"
	"marketplace-core/internal/service/mq"
	"marketplace-core/pkg/config"
	"marketplace-core/pkg/database"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "订阅并打印生命周期事件",
	Long:  `Tails one lifecycle topic from the configured broker (redis.mq_type) until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		group, _ := cmd.Flags().GetString("group")
		if !isKnownTopic(topic) {
			return fmt.Errorf("unknown topic %q, one of %v", topic, event.Topics)
		}

		var consumer mq.Consumer
		if config.Global.Redis.MQType == "kafka" {
			consumer = mq.NewKafkaConsumer(config.Global.Kafka.Brokers, group)
		} else {
			rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
			if err != nil {
				return err
			}
			defer rdb.Close()
			hostname, _ := os.Hostname()
			consumer = mq.NewRedisConsumer(rdb, group, "cli-"+hostname)
		}
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("listening on %s (Ctrl+C to stop)\n", topic)
		return consumer.Subscribe(ctx, topic, func(msg *mq.Message) error {
			fmt.Printf("[%s] key=%s %s\n", msg.ID, msg.Key, msg.Payload)
			return nil
		})
	},
}

func isKnownTopic(topic string) bool {
	for _, t := range event.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().String("topic", event.TopicAggregateConfirmed, "topic to tail")
	eventsCmd.Flags().String("group", "market-cli", "consumer group")
}

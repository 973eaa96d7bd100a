package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/groupwarden/groupwarden/cmd/groupwarden/internal"
	"github.com/groupwarden/groupwarden/pkg/llm"
	"github.com/groupwarden/groupwarden/pkg/moderation"
)

type sample struct {
	text     string
	username string
	userID   int64
	expected string
}

// Bilingual smoke samples covering the common spam categories.
var samples = []sample{
	{"大家好，我是新来的，很高兴认识大家！", "test_user_1", 12345, "正常消息"},
	{"加微信 wxid_123456 免费领取资料，仅限今天！", "spammer_1", 67890, "垃圾消息（广告）"},
	{"点击链接 http://scam-site.com 获得超值优惠，限时特价！", "spammer_2", 11111, "垃圾消息（诈骗链接）"},
	{"今天天气不错，有人要一起去爬山吗？", "test_user_2", 22222, "正常消息"},
	{"想要了解兼职机会的私聊我，日赚500+不是梦", "spammer_3", 33333, "垃圾消息（招聘诈骗）"},
	{"有人知道这个问题怎么解决吗？谢谢大家", "test_user_3", 44444, "正常消息"},
	{"扫码进群，海量资源分享📱💰🔥", "spammer_4", 55555, "垃圾消息（拉群）"},
}

func checkCmd(interactive bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		return errors.New("llm.api_key is required; run 'groupwarden onboard' first")
	}

	classifier, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("error creating classifier: %w", err)
	}

	if interactive {
		return interactiveMode(classifier)
	}
	return presetMode(classifier)
}

func presetMode(classifier *llm.Client) error {
	ctx := context.Background()
	passed := 0

	for i, s := range samples {
		fmt.Printf("\n[%d/%d] 📝 %s\n", i+1, len(samples), s.text)
		fmt.Printf("🎯 预期: %s\n", s.expected)

		v, err := classify(ctx, classifier, s.text, s.username, s.userID)
		if err != nil {
			fmt.Printf("❌ 检测失败: %v\n", err)
			continue
		}
		printVerdict(v)

		if v.IsSpam == strings.Contains(s.expected, "垃圾消息") {
			passed++
		}
	}

	fmt.Printf("\n✓ %d/%d 与预期一致\n", passed, len(samples))
	return nil
}

func interactiveMode(classifier *llm.Client) error {
	rl, err := readline.New("📝 > ")
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("输入要检测的消息，quit 退出")
	ctx := context.Background()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" || text == "q" {
			return nil
		}

		v, err := classify(ctx, classifier, text, "interactive_user", 0)
		if err != nil {
			fmt.Printf("❌ 检测失败: %v\n", err)
			continue
		}
		printVerdict(v)
	}
}

func classify(ctx context.Context, classifier *llm.Client, text, username string, userID int64) (moderation.Verdict, error) {
	msg := moderation.Message{
		Sender:   moderation.Sender{ID: userID, Username: username},
		Text:     text,
		Analysis: "【消息文本】\n" + text,
	}
	return classifier.Classify(ctx, msg)
}

func printVerdict(v moderation.Verdict) {
	flag := "✅ 正常"
	if v.IsSpam {
		flag = "🚫 垃圾消息"
	}
	fmt.Printf("%s  置信度 %.2f  类型 %s\n", flag, v.Confidence, v.Category)
	if v.Reason != "" {
		fmt.Printf("💬 %s\n", v.Reason)
	}
}

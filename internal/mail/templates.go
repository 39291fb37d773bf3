package mail

import (
	"fmt"
	"strings"
	"time"
)

// VerificationMessage renders the OTP email. Bodies mirror the production
// Japanese templates.
func VerificationMessage(to, code string, lifetime time.Duration) Message {
	minutes := int(lifetime.Minutes())

	html := fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>認証コード</h2>
  <p>以下の認証コードを入力してログインを完了してください。</p>
  <div style="background-color: #f5f5f5; padding: 20px; text-align: center; font-size: 32px; font-weight: bold; letter-spacing: 5px; margin: 20px 0;">
    %s
  </div>
  <p style="color: #666; font-size: 14px;">
    このコードの有効期限は%d分間です。<br>
    心当たりがない場合は、このメールを無視してください。
  </p>
</div>`, code, minutes)

	return Message{
		To:      to,
		Subject: "【PSA代行サービス】認証コード",
		Text:    fmt.Sprintf("【PSA代行サービス】認証コード: %s\n有効期限は%d分間です。", code, minutes),
		HTML:    html,
	}
}

// VerificationSMSBody is the SMS variant of the OTP notification.
func VerificationSMSBody(code string, lifetime time.Duration) string {
	return fmt.Sprintf("【PSA代行サービス】認証コード: %s\n有効期限は%d分間です。", code, int(lifetime.Minutes()))
}

// ApprovalCardRow is one line of the approval email's card table. Callers
// map their own card records onto it; this package stays domain-free.
type ApprovalCardRow struct {
	PlayerName string
	Year       string
	CardName   string
	Number     string
	GradeLevel string
}

// ApprovalRequestMessage renders the buyout approval email with the card
// table and the one-time approval link.
func ApprovalRequestMessage(to, customerName, approvalURL string, cards []ApprovalCardRow) Message {
	var rows strings.Builder
	for i, card := range cards {
		rows.WriteString(fmt.Sprintf(`
      <tr>
        <td style="padding: 12px; border: 1px solid #ddd;">%d</td>
        <td style="padding: 12px; border: 1px solid #ddd;">%s</td>
        <td style="padding: 12px; border: 1px solid #ddd;">%s</td>
        <td style="padding: 12px; border: 1px solid #ddd;">%s</td>
        <td style="padding: 12px; border: 1px solid #ddd;">%s</td>
        <td style="padding: 12px; border: 1px solid #ddd;">%s</td>
      </tr>`, i+1, card.PlayerName, card.Year, card.CardName, card.Number, card.GradeLevel))
	}

	html := fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">PSA代行買取の承認依頼</h2>
  <p>%s 様</p>
  <p>以下のカードについて、PSA代行買取の承認をお願いいたします。</p>
  <table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
    <thead>
      <tr style="background-color: #f8f9fa;">
        <th style="padding: 12px; border: 1px solid #ddd;">No.</th>
        <th style="padding: 12px; border: 1px solid #ddd;">選手名</th>
        <th style="padding: 12px; border: 1px solid #ddd;">年</th>
        <th style="padding: 12px; border: 1px solid #ddd;">カード名</th>
        <th style="padding: 12px; border: 1px solid #ddd;">番号</th>
        <th style="padding: 12px; border: 1px solid #ddd;">グレードレベル</th>
      </tr>
    </thead>
    <tbody>%s
    </tbody>
  </table>
  <p style="margin: 30px 0;">
    <a href="%s"
       style="display: inline-block; padding: 12px 24px; background-color: #007bff;
              color: white; text-decoration: none; border-radius: 4px;">
      承認ページへ
    </a>
  </p>
  <p style="color: #666; font-size: 14px;">
    このリンクは一度のみ有効です。<br>
    ご不明な点がございましたら、お気軽にお問い合わせください。
  </p>
</div>`, customerName, rows.String(), approvalURL)

	return Message{
		To:      to,
		Subject: "PSA代行買取の承認依頼",
		Text:    fmt.Sprintf("%s 様\n\nPSA代行買取の承認をお願いいたします。\n承認ページ: %s", customerName, approvalURL),
		HTML:    html,
	}
}

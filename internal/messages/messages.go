package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/BatmanBruc/bat-bot-neuro/internal/quota"
	"github.com/BatmanBruc/bat-bot-neuro/types"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func formatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

func ErrorDefault() string {
	return "🚫 <b>Ошибка сервиса</b>\nПопробуйте ещё раз."
}

func ErrorUnknownCommand() string {
	return "❓ <b>Команда не найдена</b>"
}

func ErrorUnsupportedMessageType() string {
	return "🤖 <b>Я так не умею</b>\nОтправьте текст, фото или команду /img."
}

func StartStatus(account *types.Account, limits quota.Limits, now time.Time) string {
	firstName := Escape(account.FullName)
	if firstName == "" {
		firstName = "друг"
	}

	var status, textLimit, imgLimit string
	if account.IsPremium(now) {
		status = fmt.Sprintf("🌟 Premium (до %s)", formatDate(account.PremiumUntil.UTC()))
		textLimit = "Безлимит"
		imgLimit = "Безлимит"
	} else {
		status = "👤 Free"
		textLimit = fmt.Sprintf("%d", limits.Text)
		imgLimit = fmt.Sprintf("%d", limits.Image)
	}

	return fmt.Sprintf(
		"👋 Привет, %s!\nТвой статус: <b>%s</b>\n\n"+
			"📊 <b>Твоя статистика:</b>\n"+
			"📝 Текст: <code>%d</code> / %s\n"+
			"🎨 Картинки: <code>%d</code> / %s\n\n"+
			"Купить подписку: /buy",
		firstName, status, account.TextUsage, textLimit, account.ImageUsage, imgLimit)
}

func LimitTextExceeded() string {
	return "⛔️ <b>Лимит текста исчерпан!</b>\nКупите подписку: /buy"
}

func LimitImageExceeded() string {
	return "⛔️ <b>Лимит картинок исчерпан!</b>\nКупите подписку: /buy"
}

func ImagePromptHint() string {
	return "Пример: <code>/img кот</code>"
}

func ImageDrawing() string {
	return "🎨 Рисую..."
}

func ImageCaption(prompt string) string {
	return "🎨 " + Escape(prompt)
}

func VisionLooking() string {
	return "👀 Смотрю..."
}

func GenerationFailed() string {
	return "🚫 <b>Ошибка генерации.</b>\nПопробуйте ещё раз."
}

func EmptyAIAnswer() string {
	return "Пустой ответ от нейросети."
}

func BuyNoTariffs() string {
	return "😔 К сожалению, сейчас нет доступных тарифов."
}

func BuyChooseTariff() string {
	return "💎 <b>Выберите тариф Premium:</b>\n\n" +
		"Вы получите безлимитный доступ к генерации текста и картинок (Flux).\n" +
		"Выберите подходящий вариант:"
}

func TariffButton(t types.Tariff) string {
	return fmt.Sprintf("%s — %d₽", t.Name, t.Price)
}

func InvoiceCreated(t types.Tariff) string {
	return fmt.Sprintf(
		"📄 Счет на оплату сформирован.\n\n"+
			"Тариф: <b>%s</b>\n"+
			"Срок: <b>%d дней</b>\n"+
			"Сумма: <b>%d RUB</b>\n\n"+
			"Нажмите кнопку ниже для оплаты картой или через СБП.",
		Escape(t.Name), t.DurationDays, t.Price)
}

func PayButton(price int) string {
	return fmt.Sprintf("💳 Оплатить %d₽", price)
}

func TariffNotFound() string {
	return "Тариф не найден или удален"
}

func PaymentSystemError() string {
	return "Ошибка платежной системы"
}

func PaymentSucceeded(until time.Time) string {
	return fmt.Sprintf(
		"✅ <b>Оплата прошла успешно!</b>\n\n"+
			"Ваша Premium подписка активна до: <code>%s</code>\n"+
			"Все лимиты сняты. Приятного использования!",
		formatDate(until.UTC()))
}

func PremiumGift(days int) string {
	return fmt.Sprintf("🎁 Вам выдан Premium на %d дней!", days)
}

func HelpMessage(limits quota.Limits) string {
	return fmt.Sprintf(
		"ℹ️ <b>Что я умею</b>\n\n"+
			"📝 Напишите любой вопрос — отвечу текстом.\n"+
			"🖼 Пришлите фото — опишу, что на нём.\n"+
			"🎨 <code>/img запрос</code> — нарисую картинку.\n\n"+
			"Бесплатно: %d текстовых запросов и %d картинок.\n"+
			"Premium снимает все лимиты: /buy",
		limits.Text, limits.Image)
}

func AdminPanel(adminID int64, st *types.Stats) string {
	return fmt.Sprintf(
		"👑 <b>Админ Панель</b>\n"+
			"Вы вошли как: <code>%d</code>\n\n"+
			"👥 Пользователей: <code>%d</code>\n"+
			"🌟 Активных подписок: <code>%d</code>\n"+
			"📝 Текст. запросов: <code>%d</code>\n"+
			"🎨 Картинок: <code>%d</code>",
		adminID, st.TotalUsers, st.ActivePremium, st.TotalText, st.TotalImages)
}

func AdminAskGiveUserID() string {
	return "✍️ Введите <b>Telegram ID</b> пользователя:"
}

func AdminAskDuration() string {
	return "📅 Срок (дней):"
}

func AdminGiveDone(targetID int64, until time.Time) string {
	return fmt.Sprintf("✅ Премиум для <code>%d</code> выдан до <code>%s</code>", targetID, formatDate(until.UTC()))
}

func AdminAskRevokeUserID() string {
	return "💀 Введите <b>Telegram ID</b> у кого забрать подписку:"
}

func AdminRevokeDone(targetID int64) string {
	return fmt.Sprintf("✅ Подписка пользователя <code>%d</code> аннулирована.", targetID)
}

func AdminEnterNumber() string {
	return "❌ Введите число."
}

func AdminAskBroadcast() string {
	return "📢 Пришлите сообщение (текст/фото/видео), которое нужно разослать:"
}

func AdminBroadcastPreview() string {
	return "👀 <b>Превью рассылки.</b>\nВот так будет выглядеть сообщение. Отправляем?"
}

func AdminBroadcastStarted(total int) string {
	return fmt.Sprintf("🚀 Рассылка началась на %d пользователей...", total)
}

func AdminBroadcastDone(delivered int) string {
	return fmt.Sprintf("🏁 Рассылка завершена. Доставлено: %d", delivered)
}

func AdminBroadcastCancelled() string {
	return "❌ Рассылка отменена."
}

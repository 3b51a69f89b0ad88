// Package i18n holds the Arabic/English string tables for user-facing text.
package i18n

var tables = map[string]map[string]string{
	"en": {
		"reminder.header":    "⏰ Reminder",
		"reminder.recurring": "🔄 Repeats",
		"reminder.snoozed":   "💤 Snoozed until %s",
		"reminder.done":      "✅ Done",
		"reminder.completed": "✅ Completed",
		"reminder.snooze10":  "💤 Snooze 10m",
		"reminder.snooze1h":  "💤 Snooze 1h",
		"list.empty":         "You have no reminders yet. Create one with /remind.",
		"list.header":        "📋 Your reminders:",
		"remind.usage":       "Usage: /remind <time> <title>\nExample: /remind tomorrow 9am Pay bills",
		"remind.created":     "⏰ Reminder set for %s",
		"remind.badtime":     "I could not understand that time. Try formats like 15:30 or 2025-01-31 09:00.",
		"remind.failed":      "Could not create the reminder, please try again.",
		"delete.usage":       "Usage: /delete <reminder number>",
		"delete.done":        "🗑 Reminder deleted.",
		"delete.missing":     "No such reminder.",
		"language.usage":     "Usage: /language <en|ar>",
		"language.done":      "✅ Language updated.",
		"timezone.usage":     "Usage: /timezone <IANA zone>\nExample: /timezone Asia/Riyadh",
		"timezone.bad":       "Unknown timezone. Use an IANA name like Asia/Riyadh or Europe/Berlin.",
		"timezone.done":      "✅ Timezone set to %s.",
		"help":               "I remind you about things.\n\n/remind <time> <title> — create a reminder\n/reminders — list your reminders\n/delete <n> — delete a reminder\n/language <en|ar> — switch language\n/timezone <zone> — set your timezone",
		"start":              "👋 Welcome! I am a reminder bot. Use /remind to schedule something, /help for details.",
	},
	"ar": {
		"reminder.header":    "⏰ تذكير",
		"reminder.recurring": "🔄 يتكرر",
		"reminder.snoozed":   "💤 مؤجل حتى %s",
		"reminder.done":      "✅ تم",
		"reminder.completed": "✅ اكتمل",
		"reminder.snooze10":  "💤 تأجيل ١٠ دقائق",
		"reminder.snooze1h":  "💤 تأجيل ساعة",
		"list.empty":         "ليس لديك تذكيرات بعد. أنشئ واحدًا باستخدام ‎/remind.",
		"list.header":        "📋 تذكيراتك:",
		"remind.usage":       "الاستخدام: ‎/remind <الوقت> <العنوان>\nمثال: ‎/remind tomorrow 9am دفع الفواتير",
		"remind.created":     "⏰ تم ضبط التذكير في %s",
		"remind.badtime":     "لم أفهم هذا الوقت. جرّب صيغًا مثل 15:30 أو 2025-01-31 09:00.",
		"remind.failed":      "تعذر إنشاء التذكير، حاول مرة أخرى.",
		"delete.usage":       "الاستخدام: ‎/delete <رقم التذكير>",
		"delete.done":        "🗑 تم حذف التذكير.",
		"delete.missing":     "لا يوجد تذكير بهذا الرقم.",
		"language.usage":     "الاستخدام: ‎/language <en|ar>",
		"language.done":      "✅ تم تحديث اللغة.",
		"timezone.usage":     "الاستخدام: ‎/timezone <المنطقة الزمنية>\nمثال: ‎/timezone Asia/Riyadh",
		"timezone.bad":       "منطقة زمنية غير معروفة. استخدم اسمًا مثل Asia/Riyadh أو Europe/Berlin.",
		"timezone.done":      "✅ تم ضبط المنطقة الزمنية على %s.",
		"help":               "أذكّرك بالأشياء.\n\n‎/remind <الوقت> <العنوان> — إنشاء تذكير\n‎/reminders — عرض تذكيراتك\n‎/delete <n> — حذف تذكير\n‎/language <en|ar> — تغيير اللغة\n‎/timezone <zone> — ضبط المنطقة الزمنية",
		"start":              "👋 أهلاً! أنا بوت تذكير. استخدم ‎/remind لجدولة شيء ما، و‎/help للمزيد.",
	},
}

// T looks up a string for the given language, falling back to English.
func T(lang, key string) string {
	if table, ok := tables[lang]; ok {
		if s, ok := table[key]; ok {
			return s
		}
	}
	return tables["en"][key]
}

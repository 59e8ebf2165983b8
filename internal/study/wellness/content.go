package wellness

var defaultQuotes = []string{
	"You can do it! 💪",
	"Believe in yourself! 🌟",
	"Keep pushing forward, no matter what. 🚀",
	"Every step counts. Take it one at a time. 👣",
	"Don't forget how amazing you are! 🌈",
	"You’ve got this! 💯",
	"Success doesn’t come from what you do occasionally, it comes from what you do consistently. 🌈",
	"Stay focused, go after your dreams and keep moving toward your goals. 🚶‍♀️",
	"You are capable of more than you know. 🌟",
	"Embrace the unknown. 🌌",
	"Strength doesn’t come from what you can do; it comes from overcoming the things you once thought you couldn’t. 💪",
	"Hardships often prepare ordinary people for an extraordinary destiny. 🌄",
	"Progress, not perfection. 🏆",
	"The only limit to your success is your own imagination. 💭",
	"Believe in your infinite potential. 🌈",
	"Opportunities don’t happen, you create them. 🏞️",
	"Your only limit is your mind. 🔄",
	"Dream it. Wish it. Do it. 🌈",
	"Your time is now! ⏳",
	"Your potential is endless. 🌟",
	"Stay positive, work hard, and make it happen. 💪",
	"Challenges are what make life interesting. Overcoming them is what makes life meaningful. 💪",
	"Happiness is a choice. 🎭",
	"Good things take time, but worth waiting for. 🕰️",
	"Every day is a new beginning. Take a deep breath, smile, and start again. 🌅",
	"Success is not in what you have, but who you are. 💎",
	"You are stronger than you think. 💪",
	"Small progress is still progress. 🚶‍♂️",
	"Believe you can, and you're halfway there. 💪",
	"You are braver than you believe, stronger than you seem, and smarter than you think. 🧠",
	"Your hard work will pay off. 🌱",
	"The best time for new beginnings is now. 🌱",
	"You are more capable than you give yourself credit for. 💪",
	"Take a moment to reflect on your accomplishments. 🏅",
	"Stay patient, work hard, and make it happen. 💪",
	"You are worthy of great things. ✨",
	"The only way to do great work is to love what you do. ❤️",
	"Keep going! You're closer than you think. ⛷️",
	"A positive mindset brings positive results. 🌈",
	"Embrace the journey and trust the process. 🛤️",
	"Your journey matters, so keep moving forward. 🚶‍♂️",
	"Be proud of how far you've come. 🌟",
	"Life begins at the end of your comfort zone. 🌈",
	"Start where you are. Use what you have. Do what you can. 🏞️",
	"Don’t watch the clock; do what it does. Keep going. ⏰",
	"A journey of a thousand miles begins with a single step. 🚶‍♂️",
	"Every day is a chance to begin again. 🌄",
	"Your only limit is your mindset. 💭",
	"Your dreams are valid. 🌈",
	"Inhale confidence, exhale doubt. 🌬️",
	"The best way to predict the future is to create it. 🚀",
	"You have what it takes to succeed. 💪",
	"Believe in your dreams and never give up. 🌟",
	"Each day brings new opportunities. 🌱",
	"Strength grows in the moments when you think you can’t go on, but you keep going. 💪",
	"You are enough just as you are. 💖",
	"Great things take time. 🌈",
	"You’re capable of amazing things. 🌟",
	"It’s never too late to be what you might have been. 🌄",
	"Your story isn’t over yet. 🌌",
	"Your potential is limitless. 🌟",
	"Do something today that your future self will thank you for. ✨",
	"You are braver than you feel, stronger than you seem, and loved more than you know. 💖",
	"Everything is going to be okay.. Keep going, you got this you've always have. 🥹",
}

var defaultReminders = []string{
	"Time to drink some water! 💧",
	"Take a deep breath and relax. 🌬️",
	"Fix your posture! Sit up straight. 🪑",
	"Stretch your arms and legs. 🧘‍♀️",
	"Remember to blink and focus on your screen time. 👀",
	"Stand up and walk around for a few minutes. 🚶‍♀️",
	"Take a short break from your work. 🌻",
	"Breathe in for 4 seconds, hold for 4 seconds, breathe out for 4 seconds. 🌬️",
	"Check your eyes! Look away from the screen and focus on something far. 🧘‍♂️",
	"Have a healthy snack! 🍎",
	"Practice mindfulness for a few minutes. 🧘",
	"Do some light stretching exercises. 🏃‍♀️",
	"Give your eyes a break from screens. 🛑",
	"Remember to drink herbal tea to relax. 🍵",
	"Check your water intake for today. 💧",
	"Do some light yoga poses. 🧘‍♀️",
	"Try deep breathing exercises. 🌬️",
	"Focus on your mental health today. 💆‍♀️",
	"Take a short walk outside. 🌳",
	"Adjust your screen brightness for better eye comfort. 📱",
	"Stay hydrated throughout the day! 💧",
	"Make time to meditate. 🧘‍♂️",
	"Stretch your neck gently side to side. 🧘",
	"Relax your shoulders. Let go of any tension. 🫂",
	"Take a moment to smile! 😊",
	"Wash your hands if you haven’t in a while. 🧼",
	"Stand up and do 10 squats! 🏋️",
	"Take a deep breath and count to five. 🌬️",
	"Do a quick wrist stretch to avoid strain. ✋",
	"Close your eyes for 20 seconds to relax them. 😌",
	"Check your surroundings for a moment of mindfulness. 🌱",
	"Take a sip of your favorite tea or coffee. ☕",
	"Write down something you're grateful for today. 📓",
	"Let your eyes wander and notice something beautiful. 🌸",
	"Open a window for some fresh air. 🌬️",
	"Add some green plants to your workspace for a fresh vibe. 🌿",
	"Do a quick shoulder roll exercise. 🔄",
	"Keep a glass of water handy and sip frequently. 💧",
	"Check your ergonomics: is your chair and desk setup comfortable? 🪑",
	"Step outside for a breath of fresh air. 🌤️",
	"Play your favorite calming music for 5 minutes. 🎶",
	"Take a moment to appreciate yourself—you’re doing great! 🌟",
	"Massage your temples or the back of your neck. 💆",
	"Roll your ankles in small circles for better blood flow. 🔄",
	"Take a 5-minute break to rest your mind. 🌻",
	"Eat a piece of fruit for a healthy energy boost. 🍓",
	"Organize your desk to create a more focused workspace. 📚",
	"Drink a glass of water before you continue working. 💧",
	"Take three slow, deep breaths to reset. 🌬️",
	"Shake out your arms and legs to release tension. 🤲",
	"Have a quick stretch or walk—it’s good for your back. 🚶",
	"Take a quick mindfulness pause and notice 3 things around you. 🧘",
	"Journal one positive thought or goal for the day. 📝",
	"Do a quick hand massage to relax your fingers. 🤲",
	"Look outside for a moment and connect with nature. 🌳",
	"Lightly tap your shoulders and upper back for better circulation. 🖐️",
	"Tidy up your immediate space—it helps your mental clarity. 🧹",
	"Switch up your sitting position to avoid stiffness. 🪑",
	"Give your wrists a gentle shake to release tension. ✋",
	"Place your palms together and stretch your fingers outward. 🤝",
	"Take a mindful sip of water and enjoy its refreshment. 💦",
}

// DefaultQuotes returns a copy of the built-in quote list.
func DefaultQuotes() []string { return append([]string(nil), defaultQuotes...) }

// DefaultReminders returns a copy of the built-in health reminders.
func DefaultReminders() []string { return append([]string(nil), defaultReminders...) }

package dispatch

// Capture — одна группа захвата. Set == false — группа не участвовала
// в совпадении (это не ошибка).
type Capture struct {
	Value string
	Set   bool
}

// Args — группы захвата в порядке объявления в шаблоне.
type Args []Capture

// Get возвращает группу i; вне диапазона — как незаданная группа.
func (a Args) Get(i int) (string, bool) {
	if i < 0 || i >= len(a) {
		return "", false
	}
	return a[i].Value, a[i].Set
}

// Or — значение группы i или def, если группа не задана.
func (a Args) Or(i int, def string) string {
	if v, ok := a.Get(i); ok {
		return v
	}
	return def
}

func captures(text string, loc []int) Args {
	n := len(loc)/2 - 1
	args := make(Args, n)
	for i := 0; i < n; i++ {
		start, end := loc[2*(i+1)], loc[2*(i+1)+1]
		if start < 0 {
			continue
		}
		args[i] = Capture{Value: text[start:end], Set: true}
	}
	return args
}

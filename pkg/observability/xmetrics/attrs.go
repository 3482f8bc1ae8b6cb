package xmetrics

// String 创建字符串属性。
func String(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

// Bool 创建布尔属性。
func Bool(key string, value bool) Attr {
	return Attr{Key: key, Value: value}
}

// Int 创建整数属性。
func Int(key string, value int) Attr {
	return Attr{Key: key, Value: value}
}

// Outcome 创建业务结果属性，例如 "ok"、"sold_out"、"duplicate"。
func Outcome(value string) Attr {
	return Attr{Key: "outcome", Value: value}
}

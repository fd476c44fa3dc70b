package domain

import "strconv"

// nullable attributes serialize as their value or an untyped nil

func strOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func f64OrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func i64OrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func reprStr(p *string) string {
	if p == nil {
		return "None"
	}
	return *p
}

func reprInt(p *int64) string {
	if p == nil {
		return "None"
	}
	return strconv.FormatInt(*p, 10)
}

package crm

import "strings"

// InternationalPrefix replaces the local trunk prefix when searching contacts.
const InternationalPrefix = "+972"

// NormalizePhone rewrites a local number starting with 0 into international form.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "0") {
		return InternationalPrefix + phone[1:]
	}
	return phone
}

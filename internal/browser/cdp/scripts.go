package cdp

// Function declarations run with Runtime.callFunctionOn; this is the element.
const (
	fnIsConnected = `function() { return this.isConnected; }`

	fnText = `function() {
	const t = this.innerText;
	return (t === undefined || t === null) ? (this.textContent || "") : t;
}`

	fnValue = `function() {
	if ("value" in this && this.value !== undefined && this.value !== null) return String(this.value);
	return this.isContentEditable ? (this.innerText || "") : "";
}`

	fnAttribute = `function(name) {
	const v = this.getAttribute(name);
	return v === null ? "" : v;
}`

	fnIsVisible = `function() {
	if (!this.isConnected) return false;
	const rect = this.getBoundingClientRect();
	if (rect.width <= 0 || rect.height <= 0) return false;
	const style = window.getComputedStyle(this);
	return style.display !== "none" && style.visibility !== "hidden" && style.opacity !== "0";
}`

	fnIsEnabled = `function() {
	if (this.disabled === true) return false;
	if (this.closest && this.closest("fieldset[disabled]") && !this.closest("legend")) return false;
	return this.getAttribute("aria-disabled") !== "true";
}`

	fnScrollBy = `function(dx, dy) {
	if (this.scrollBy) { this.scrollBy(dx, dy); } else { window.scrollBy(dx, dy); }
	return true;
}`

	fnLocation = `location.href`
)
